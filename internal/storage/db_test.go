package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore_CreatesDatabase(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("Database directory was not created")
	}
}

func TestNewSQLiteStore_RequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := NewSQLiteStore(""); err == nil {
		t.Error("NewSQLiteStore(\"\") should fail")
	}
}

func TestSQLiteStore_Migration_CreatesSchema(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	for _, table := range []string{"schema_meta", "items"} {
		_, err := store.DB().ExecContext(context.Background(),
			"SELECT 1 FROM "+table+" LIMIT 1")
		if err != nil {
			t.Errorf("Table %s does not exist: %v", table, err)
		}
	}
}

func TestSQLiteStore_Migration_Idempotent(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 2; i++ {
		store, err := NewSQLiteStore(dbPath)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		var version int
		err = store.DB().QueryRowContext(context.Background(),
			"SELECT MAX(version) FROM schema_meta").Scan(&version)
		if err != nil {
			t.Fatalf("read version: %v", err)
		}
		if version != 1 {
			t.Errorf("schema version = %d, want 1", version)
		}
		store.Close()
	}
}

func TestSQLiteStore_WALMode_Enabled(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	var journalMode string
	err := store.DB().QueryRowContext(context.Background(),
		"PRAGMA journal_mode").Scan(&journalMode)
	if err != nil {
		t.Fatalf("Failed to check journal mode: %v", err)
	}

	if journalMode != "wal" {
		t.Errorf("Journal mode = %s, want wal", journalMode)
	}
}

func TestSQLiteStore_BusyTimeout(t *testing.T) {
	t.Parallel()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), WithBusyTimeout(1234))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer store.Close()

	var timeout int
	if err := store.DB().QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("Failed to read busy_timeout: %v", err)
	}
	if timeout != 1234 {
		t.Errorf("busy_timeout = %d, want 1234", timeout)
	}
}

func TestSQLiteStore_Close_Idempotent(t *testing.T) {
	t.Parallel()

	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
