package util

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger for the given environment:
// human-readable debug output in development, JSON at info level
// everywhere else.
func NewLogger(env string) *slog.Logger {
	if env == "development" {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
