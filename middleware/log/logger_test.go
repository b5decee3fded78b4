package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-im/concord/config"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with JSON format and stdout output", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		}

		logger, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)

		logger.Info("test message")
	})

	t.Run("creates logger with text format", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
		}

		logger, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)

		logger.Debug("test debug message")
	})

	t.Run("creates logger with file output", func(t *testing.T) {
		tmpDir := t.TempDir()
		logFile := filepath.Join(tmpDir, "test.log")

		cfg := &config.LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "file",
			FilePath: logFile,
		}

		logger, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)

		logger.Info("test file message")

		err = logger.Close()
		require.NoError(t, err)

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), "test file message")
	})

	t.Run("handles different log levels", func(t *testing.T) {
		levels := []string{"debug", "info", "warn", "error"}

		for _, level := range levels {
			cfg := &config.LoggingConfig{
				Level:  level,
				Format: "json",
				Output: "stdout",
			}

			logger, err := NewLogger(cfg)
			require.NoError(t, err, "failed to create logger for level: %s", level)
			require.NotNil(t, logger)

			logger.Info("test message for level: " + level)
		}
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		cfg := &config.LoggingConfig{
			Level:  "verbose",
			Format: "json",
			Output: "stdout",
		}

		logger, err := NewLogger(cfg)
		require.NoError(t, err)
		require.NotNil(t, logger)
	})
}

func TestTraceIDContext(t *testing.T) {
	t.Run("round trips a trace ID through context", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "abc-123")
		assert.Equal(t, "abc-123", GetTraceID(ctx))
	})

	t.Run("generates a trace ID when none is given", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "")
		assert.NotEmpty(t, GetTraceID(ctx))
	})

	t.Run("returns empty string for plain context", func(t *testing.T) {
		assert.Empty(t, GetTraceID(context.Background()))
	})

	t.Run("NewTraceID produces unique values", func(t *testing.T) {
		assert.NotEqual(t, NewTraceID(), NewTraceID())
	})
}

func TestLoggerWithContext(t *testing.T) {
	logger := NewNopLogger()

	ctx := WithTraceID(context.Background(), "trace-1")
	withTrace := logger.WithContext(ctx)
	assert.NotNil(t, withTrace)

	// No trace ID: same logger back.
	same := logger.WithContext(context.Background())
	assert.Same(t, logger, same)
}
