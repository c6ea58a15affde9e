package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DefaultConfig(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, New(nil))
}

func TestNew_JSONOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&Config{Output: &buf, Level: slog.LevelInfo})

	logger.Info("test message", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Contains(t, entry, "ts")
	assert.NotContains(t, entry, "time")
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestNew_DebugOverridesLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&Config{Output: &buf, Level: slog.LevelError, Debug: true})

	logger.Debug("debug message")

	assert.Contains(t, buf.String(), "debug message")
}

func TestNew_InfoLevelHidesDebug(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&Config{Output: &buf, Level: slog.LevelInfo})

	logger.Debug("debug message")

	assert.Empty(t, buf.String())
}

func TestNewFromEnv_Debug(t *testing.T) {
	t.Setenv("RINGLIST_DEBUG", "1")

	logger := NewFromEnv()
	assert.True(t, logger.Enabled(t.Context(), slog.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogStartupAndShutdown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&Config{Output: &buf})

	LogStartup(logger, StartupInfo{
		Version:    "1.0.0",
		SocketPath: "/tmp/ringlist.sock",
		Items:      42,
		PID:        7,
	})
	LogShutdown(logger, "signal")
	LogSQLiteError(logger, "fetch_page", errors.New("locked"))

	dec := json.NewDecoder(&buf)
	var startup, shutdown, sqlErr map[string]any
	require.NoError(t, dec.Decode(&startup))
	require.NoError(t, dec.Decode(&shutdown))
	require.NoError(t, dec.Decode(&sqlErr))

	assert.Equal(t, "server started", startup["msg"])
	assert.Equal(t, "/tmp/ringlist.sock", startup["socket_path"])
	assert.InDelta(t, 42, startup["items"], 0)
	assert.Equal(t, "signal", shutdown["reason"])
	assert.Equal(t, "locked", sqlErr["error"])
}

func TestHandler_LevelVar(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := slog.New(Handler(&buf, level))

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	level.Set(slog.LevelDebug)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
