package picker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/ringlist/internal/config"
	"github.com/runger/ringlist/internal/daemon"
	"github.com/runger/ringlist/internal/storage"
)

func newSeededStore(t *testing.T, texts ...string) storage.Store {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	_, err = store.AppendItems(context.Background(), texts)
	require.NoError(t, err)
	return store
}

func TestStoreProvider_FetchPage(t *testing.T) {
	store := newSeededStore(t, "alpha", "\x1b[1mbeta\x1b[0m", "gamma\nray", "alphabet")
	p := NewStoreProvider(store)

	page, err := p.FetchPage(context.Background(), "", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "beta", page.Items[1].Text)
	assert.Equal(t, "gamma ray", page.Items[2].Text)
	assert.NotEmpty(t, page.Items[0].ID)

	page, err = p.FetchPage(context.Background(), "ALPHA", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	_, err = p.FetchPage(context.Background(), "", 0, 10)
	assert.ErrorIs(t, err, storage.ErrInvalidPage)
}

func TestRemoteProvider_FetchPage(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a page server")
	}

	runDir, err := os.MkdirTemp("", "rl")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(runDir) })

	srv, err := daemon.NewServer(&daemon.ServerConfig{
		Store: newSeededStore(t, "one", "two", "three"),
		Paths: &config.Paths{ConfigDir: runDir, DataDir: runDir, RuntimeDir: runDir},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.NoError(t, daemon.WaitForSocket(ctx, srv.SocketPath(), 5*time.Second))

	p, err := NewRemoteProvider(srv.SocketPath(), time.Second)
	require.NoError(t, err)
	defer p.Close()

	page, err := p.FetchPage(context.Background(), "t", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "two", page.Items[0].Text)

	_, err = p.FetchPage(context.Background(), "", 1, 0)
	assert.Error(t, err)
}

func TestRowLoader(t *testing.T) {
	l := &rowLoader{provider: newListProvider(25), query: "item"}
	rows := []*Row{{Hidden: true}, {}, {}}
	i := 0
	next := func() (*Row, bool) {
		if i >= len(rows) {
			return nil, false
		}
		i++
		return rows[i-1], true
	}

	total, err := l.Load(context.Background(), 3, 10, next)
	require.NoError(t, err)
	assert.Equal(t, 25, total)
	assert.Equal(t, 20, rows[0].Index)
	assert.Equal(t, "item 022", rows[2].Text)
	assert.True(t, rows[2].Loaded)

	l.Show(rows[0])
	assert.False(t, rows[0].Hidden)
	l.Hide(rows[1])
	l.Unload(rows[1])
	assert.Equal(t, Row{Hidden: true}, *rows[1])
}
