package cmd

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `{"ts":"2026-01-01T00:00:00Z","level":"INFO","msg":"server started"}
{"ts":"2026-01-01T00:00:01Z","level":"DEBUG","msg":"page served"}
{"ts":"2026-01-01T00:00:02Z","level":"WARN","msg":"duplicate page"}
not json
{"ts":"2026-01-01T00:00:03Z","level":"ERROR","msg":"failed to fetch page"}
`

func keepAll(string) bool { return true }

func TestTailLines(t *testing.T) {
	lines, err := tailLines(strings.NewReader(sampleLog), 2, keepAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"not json", `{"ts":"2026-01-01T00:00:03Z","level":"ERROR","msg":"failed to fetch page"}`}, lines)

	lines, err = tailLines(strings.NewReader(sampleLog), 50, keepAll)
	require.NoError(t, err)
	assert.Len(t, lines, 5)

	lines, err = tailLines(strings.NewReader(sampleLog), 0, keepAll)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestTailLines_Filtered(t *testing.T) {
	keep := func(line string) bool { return lineLevel(line) >= slog.LevelWarn }
	lines, err := tailLines(strings.NewReader(sampleLog), 10, keep)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "duplicate page")
	assert.Equal(t, "not json", lines[1])
}

func TestLineLevel(t *testing.T) {
	tests := []struct {
		line string
		want slog.Level
	}{
		{`{"level":"DEBUG"}`, slog.LevelDebug},
		{`{"level":"INFO"}`, slog.LevelInfo},
		{`{"level":"WARN"}`, slog.LevelWarn},
		{`{"level":"ERROR"}`, slog.LevelError},
		{`{"msg":"no level"}`, slog.LevelError},
		{`{"level":"LOUD"}`, slog.LevelError},
		{"plain text", slog.LevelError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lineLevel(tt.line), tt.line)
	}
}

func TestFollowLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	r, err := os.Open(path)
	require.NoError(t, err)
	defer r.Close()

	w, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- followLines(ctx, r, &out, keepAll) }()

	// A line written in two parts is printed once, whole.
	_, err = w.WriteString(`{"level":"INFO","msg":"fir`)
	require.NoError(t, err)
	time.Sleep(150 * time.Millisecond)
	_, err = w.WriteString("st\"}\nsecond\n")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "second")
	}, time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, "{\"level\":\"INFO\",\"msg\":\"first\"}\nsecond\n", out.String())
}

func TestLogs_NoFile(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "", "logs")
	require.NoError(t, err)
	assert.Contains(t, out, "No log file found")
}

func TestLogs_Tail(t *testing.T) {
	dir := setupEnv(t)
	logDir := filepath.Join(dir, "data", "ringlist", "logs")
	require.NoError(t, os.MkdirAll(logDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(logDir, "server.log"), []byte(sampleLog), 0o600))

	out, err := run(t, "", "logs", "--level", "error")
	require.NoError(t, err)
	assert.Equal(t, "not json\n{\"ts\":\"2026-01-01T00:00:03Z\",\"level\":\"ERROR\",\"msg\":\"failed to fetch page\"}\n", out)
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
