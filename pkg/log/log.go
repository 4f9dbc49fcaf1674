// Package log configures the process-wide slog default and hands out
// per-module loggers for the flowcanvas services.
package log

import (
	"log/slog"
	"os"
)

const serviceAttr = "flowcanvas"

// Setup installs a text handler on the default logger at the given
// level. Unknown levels fall back to info.
func Setup(logLevel string) {
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns the default logger tagged with the service and
// module names.
func WithModule(module string) *slog.Logger {
	return slog.With("service", serviceAttr, "module", module)
}
