// Package logging provides structured logging utilities.
//
// Logs are formatted as:
// [LEVEL] [system] [HH:MM:SS] message key=value
package logging

import (
	"log/slog"
	"os"

	"github.com/brightbooks/recon-engine/internal/infrastructure/config"
)

// NewLogger creates a structured logger based on config.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(NewPlainHandler(os.Stdout, opts))
}

// NewLoggerWithSystem creates a logger scoped to a subsystem
// (e.g. "reconcile", "import", "api").
func NewLoggerWithSystem(cfg config.LoggingConfig, system string) *slog.Logger {
	return NewLogger(cfg).With("system", system)
}
