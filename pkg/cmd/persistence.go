package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/appforge/flowcanvas/pkg/persistence"
	"github.com/appforge/flowcanvas/pkg/persistence/file"
	"github.com/appforge/flowcanvas/pkg/persistence/postgresql"
)

// NewPersistence picks the draft store from the database URL scheme:
// postgres URLs get PostgreSQL, anything else is treated as a file
// root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return provider
}
