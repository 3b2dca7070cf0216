package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		want   string
	}{
		{name: "text format", format: FormatText, want: "level=INFO"},
		{name: "json format", format: FormatJSON, want: `"level":"INFO"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(Config{Level: slog.LevelInfo, Format: tt.format, Output: &buf})

			logger.Info("test message")

			assert.Contains(t, buf.String(), tt.want)
			assert.Contains(t, buf.String(), "test message")
		})
	}
}

func TestLogger_OmitsTimeByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: slog.LevelInfo, Output: &buf})

	logger.Info("hello")

	assert.NotContains(t, buf.String(), "time=")
}

func TestLogger_SetLevelIsSharedWithChildren(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: slog.LevelInfo, Output: &buf})
	child := logger.With("component", "calibration")

	child.Debug("hidden")
	logger.SetLevel(slog.LevelDebug)
	child.Debug("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "component=calibration")
}

func TestLogger_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: slog.LevelInfo, Output: &buf}).WithGroup("cache")

	logger.Info("hit", "family", "claude")

	assert.Contains(t, buf.String(), "cache.family=claude")
}

func TestDisabledLogger(t *testing.T) {
	logger := NewDisabledLogger()
	assert.NotPanics(t, func() {
		logger.Error("nothing")
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(""))
}

func TestNewFileLoggerFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")
	t.Setenv(envDebugFile, path)
	t.Setenv(envDebugLevel, "info")

	logger := NewFileLoggerFromEnv("unused.log")
	logger.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestOrDisabled(t *testing.T) {
	assert.NotNil(t, OrDisabled(nil))
	l := NewDisabledLogger()
	assert.Equal(t, l, OrDisabled(l))
}
