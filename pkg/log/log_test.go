package log_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/appforge/flowcanvas/pkg/log"
)

func TestWithModuleTagsServiceAndModule(t *testing.T) {
	var buf bytes.Buffer

	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	log.WithModule("editor").Info("session opened")

	assert.Contains(t, buf.String(), "service=flowcanvas")
	assert.Contains(t, buf.String(), "module=editor")
}
