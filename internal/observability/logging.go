// Package observability provides the application logger and Prometheus metrics.
package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON logger writing to stdout. Development builds log at
// debug level, everything else at info.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo
	if env == "development" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// Setup builds the logger for env and installs it as the slog default.
func Setup(env string) *slog.Logger {
	logger := NewLogger(env)
	slog.SetDefault(logger)
	return logger
}
