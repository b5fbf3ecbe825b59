package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerInitialized(t *testing.T) {
	logger := GetLogger()
	require.NotNil(t, logger, "Logger should be initialized")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name          string
		level         string
		expectedLevel slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"warning level", "warning", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"default for unknown", "invalid", slog.LevelInfo},
		{"uppercase", "DEBUG", slog.LevelDebug},
		{"mixed case", "InFo", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expectedLevel, ParseLevel(tt.level))
		})
	}
}

func TestInitLoggerFormats(t *testing.T) {
	defer InitLogger("info", "text")

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		initLogger(&buf, "info", "json")
		slog.Info("decoded", "document_type", "drivers")

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		require.Equal(t, "decoded", entry["msg"])
		require.Equal(t, "drivers", entry["document_type"])
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		initLogger(&buf, "info", "text")
		slog.Info("decoded", "document_type", "vehicle")
		require.Contains(t, buf.String(), "msg=decoded")
		require.Contains(t, buf.String(), "document_type=vehicle")
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		initLogger(&buf, "warn", "text")
		slog.Info("hidden")
		slog.Warn("shown")
		require.NotContains(t, buf.String(), "hidden")
		require.Contains(t, buf.String(), "shown")
	})
}

func TestGetLogger(t *testing.T) {
	InitLogger("info", "text")
	logger1 := GetLogger()
	logger2 := GetLogger()

	require.NotNil(t, logger1)
	require.NotNil(t, logger2)
	require.Equal(t, logger1, logger2, "GetLogger should return the same instance")
}
