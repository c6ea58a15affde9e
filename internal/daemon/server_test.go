package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/runger/ringlist/internal/config"
	"github.com/runger/ringlist/internal/storage"
)

// failingStore fails every page fetch.
type failingStore struct {
	storage.Store
}

func (failingStore) FetchPage(context.Context, storage.Filter, int, int) (*storage.Page, error) {
	return nil, errors.New("disk on fire")
}

// startServer runs a page server on a short-lived socket and returns a
// connected client. Unix socket paths are length-limited, so the runtime
// directory lives directly under the system temp dir.
func startServer(t *testing.T, store storage.Store) (*Server, *Client) {
	t.Helper()

	runDir, err := os.MkdirTemp("", "rl")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(runDir) })

	paths := &config.Paths{ConfigDir: runDir, DataDir: runDir, RuntimeDir: runDir}
	srv, err := NewServer(&ServerConfig{Store: store, Paths: paths})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Start returned %v", err)
		}
	})

	if err := WaitForSocket(ctx, srv.SocketPath(), 5*time.Second); err != nil {
		t.Fatalf("WaitForSocket: %v", err)
	}

	client, err := NewClient(srv.SocketPath())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func seededStore(t *testing.T, n int) storage.Store {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "items.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	texts := make([]string, n)
	for i := range texts {
		if i%2 == 0 {
			texts[i] = fmt.Sprintf("even item %d", i)
		} else {
			texts[i] = fmt.Sprintf("odd item %d", i)
		}
	}
	if _, err := store.AppendItems(context.Background(), texts); err != nil {
		t.Fatalf("AppendItems failed: %v", err)
	}
	return store
}

func TestNewServer_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewServer(&ServerConfig{}); err == nil {
		t.Error("expected error for nil store")
	}

	srv, err := NewServer(&ServerConfig{Store: failingStore{}, SocketPath: "/tmp/x.sock"})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	if srv.SocketPath() != "/tmp/x.sock" {
		t.Errorf("SocketPath = %s, want /tmp/x.sock", srv.SocketPath())
	}
	if srv.idleTimeout != 0 {
		t.Errorf("idle timeout should default to disabled, got %v", srv.idleTimeout)
	}
}

func TestServer_FetchPage(t *testing.T) {
	t.Parallel()

	srv, client := startServer(t, seededStore(t, 25))
	ctx := context.Background()

	resp, err := client.FetchPage(ctx, "", 3, 10)
	if err != nil {
		t.Fatalf("FetchPage failed: %v", err)
	}
	if resp.Total != 25 {
		t.Errorf("Total = %d, want 25", resp.Total)
	}
	if len(resp.Items) != 5 {
		t.Fatalf("expected 5 items on the last page, got %d", len(resp.Items))
	}
	if resp.Items[0].Text != "even item 20" || resp.Items[0].ID == "" {
		t.Errorf("unexpected first item %+v", resp.Items[0])
	}

	resp, err = client.FetchPage(ctx, "odd", 1, 4)
	if err != nil {
		t.Fatalf("filtered FetchPage failed: %v", err)
	}
	if resp.Total != 12 || len(resp.Items) != 4 || resp.Items[3].Text != "odd item 7" {
		t.Errorf("unexpected filtered page %+v", resp)
	}

	resp, err = client.FetchPage(ctx, "", 9, 10)
	if err != nil {
		t.Fatalf("FetchPage past the end failed: %v", err)
	}
	if resp.Total != 25 || len(resp.Items) != 0 {
		t.Errorf("page past the end should be empty with total 25, got %+v", resp)
	}

	if got := srv.PagesServed(); got != 3 {
		t.Errorf("PagesServed = %d, want 3", got)
	}
}

func TestServer_FetchPage_Errors(t *testing.T) {
	t.Parallel()

	_, client := startServer(t, seededStore(t, 3))
	_, err := client.FetchPage(context.Background(), "", 0, 10)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("page 0: code = %v, want InvalidArgument (%v)", status.Code(err), err)
	}

	_, broken := startServer(t, failingStore{})
	_, err = broken.FetchPage(context.Background(), "", 1, 10)
	if status.Code(err) != codes.Internal {
		t.Errorf("store failure: code = %v, want Internal (%v)", status.Code(err), err)
	}
}

func TestServer_ShutdownRemovesFiles(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t, seededStore(t, 1))
	if _, err := os.Stat(srv.paths.PIDFile()); err != nil {
		t.Fatalf("PID file should exist while serving: %v", err)
	}

	srv.Shutdown()
	<-srv.Done()

	for _, path := range []string{srv.SocketPath(), srv.paths.PIDFile()} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should be removed after Shutdown", path)
		}
	}
}

func TestServer_IdleShutdown(t *testing.T) {
	t.Parallel()

	runDir, err := os.MkdirTemp("", "rl")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	defer os.RemoveAll(runDir)

	srv, err := NewServer(&ServerConfig{
		Store:       failingStore{},
		Paths:       &config.Paths{ConfigDir: runDir, DataDir: runDir, RuntimeDir: runDir},
		IdleTimeout: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Start(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		srv.Shutdown()
		t.Fatal("server did not stop after the idle timeout")
	}
}
