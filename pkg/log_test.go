package pkg

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs routes the default logger into a buffer at the given level for
// the duration of the test.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	originalLogger := DefaultLogger
	originalLevel := GetLogLevel()
	t.Cleanup(func() {
		SetLogger(originalLogger)
		SetLogLevel(originalLevel)
	})
	SetLogLevel(level)
	SetLogger(NewLogger(&buf, nil))
	return &buf
}

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.level)
			assert.Equal(t, tt.level, GetLogLevel())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warn", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"chatty", slog.LevelWarn, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLogLevel(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, nil)
	require.NotNil(t, logger)

	logger.Warn("test message")
	assert.Contains(t, buf.String(), `"msg":"test message"`)
}

func TestLogDebug(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)

	LogDebug(ComponentTransfer, "debug message", "xfer", "abc")
	output := buf.String()
	assert.Contains(t, output, "debug message")
	assert.Contains(t, output, "component=transfer")
	assert.Contains(t, output, "xfer=abc")
}

func TestLogDebug_Suppressed(t *testing.T) {
	buf := captureLogs(t, slog.LevelWarn)

	LogDebug(ComponentTransfer, "quiet")
	assert.Empty(t, buf.String())
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		name      string
		log       func(Component, string, ...any)
		component Component
	}{
		{"info", LogInfo, ComponentController},
		{"warn", LogWarn, ComponentDevice},
		{"error", LogError, ComponentIRQ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t, slog.LevelDebug)
			tt.log(tt.component, tt.name+" message")
			assert.Contains(t, buf.String(), tt.name+" message")
			assert.Contains(t, buf.String(), "component="+string(tt.component))
		})
	}
}
