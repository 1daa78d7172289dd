package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightbooks/recon-engine/internal/infrastructure/config"
)

func TestPlainHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	handler := NewPlainHandler(&buf, nil)
	logger := slog.New(handler).With("system", "reconcile")

	logger.Info("matched receipt", "receipt_id", 42, "confidence", 0.95)

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "[INFO] [reconcile] ["), "got %q", line)
	assert.Contains(t, line, "matched receipt")
	assert.Contains(t, line, "receipt_id=42")
	assert.Contains(t, line, "confidence=0.95")
}

func TestPlainHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	level := slog.LevelWarn
	handler := NewPlainHandler(&buf, &slog.HandlerOptions{Level: level})

	require.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, handler.Enabled(context.Background(), slog.LevelError))
}

func TestPlainHandler_NoColorsForBuffer(t *testing.T) {
	var buf bytes.Buffer
	handler := NewPlainHandler(&buf, nil)

	rec := slog.NewRecord(time.Now(), slog.LevelError, "boom", 0)
	require.NoError(t, handler.Handle(context.Background(), rec))

	assert.NotContains(t, buf.String(), "\033[")
}

func TestNewLogger_Levels(t *testing.T) {
	logger := NewLogger(config.LoggingConfig{Level: "debug"})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	logger = NewLogger(config.LoggingConfig{Level: "error"})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelWarn))
}
