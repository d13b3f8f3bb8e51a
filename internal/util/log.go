// Package util provides shared utility functions for logging, bounded
// retries, and rate limiting.
package util

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the engine's structured logger on log/slog. Levels are
// "debug", "info", "warn" and "error"; format is "json" or "text". Anything
// unrecognised falls back to info-level JSON, the daemon default.
func NewLogger(level, format string) *slog.Logger {
	var slevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slevel = slog.LevelDebug
	case "warn":
		slevel = slog.LevelWarn
	case "error":
		slevel = slog.LevelError
	default:
		slevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: slevel}
	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
