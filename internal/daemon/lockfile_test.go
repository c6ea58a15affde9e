package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestLockFile_AcquireRelease(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "nested", "server.lock")
	lf := NewLockFile(lockPath)

	if err := lf.Acquire(); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("failed to read lock file: %v", err)
	}
	if want := fmt.Sprintf("%d\n", os.Getpid()); string(data) != want {
		t.Errorf("lock file = %q, want %q", data, want)
	}

	info, err := os.Stat(lockPath)
	if err != nil {
		t.Fatalf("failed to stat lock file: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected permissions 0600, got %o", info.Mode().Perm())
	}

	if err := lf.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file should be removed after Release")
	}
	if err := lf.Release(); err != nil {
		t.Errorf("second Release should not error: %v", err)
	}
}

func TestLockFile_HeldBySecondDescriptor(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "server.lock")
	lf1 := NewLockFile(lockPath)
	if err := lf1.Acquire(); err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}
	defer lf1.Release()

	// flock locks belong to the open file description, so a second open in
	// the same process conflicts on Linux.
	lf2 := NewLockFile(lockPath)
	if err := lf2.Acquire(); err == nil {
		lf2.Release()
		t.Skip("flock allows same-process re-lock on this OS")
	}

	pid, held, err := ReadHeldPID(lockPath)
	if err != nil {
		t.Fatalf("ReadHeldPID failed: %v", err)
	}
	if !held || pid != os.Getpid() {
		t.Errorf("ReadHeldPID = (%d, %v), want (%d, true)", pid, held, os.Getpid())
	}
}

func TestLockFile_LeftoverFileIsReused(t *testing.T) {
	t.Parallel()

	lockPath := filepath.Join(t.TempDir(), "server.lock")
	if err := os.WriteFile(lockPath, []byte("999999999\n"), 0o600); err != nil {
		t.Fatalf("failed to write stale PID: %v", err)
	}

	pid, held, err := ReadHeldPID(lockPath)
	if err != nil || held || pid != 0 {
		t.Fatalf("ReadHeldPID on unlocked file = (%d, %v, %v)", pid, held, err)
	}

	lf := NewLockFile(lockPath)
	if err := lf.Acquire(); err != nil {
		t.Fatalf("Acquire failed with leftover lock file: %v", err)
	}
	defer lf.Release()

	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("failed to read lock file: %v", err)
	}
	if want := fmt.Sprintf("%d\n", os.Getpid()); string(data) != want {
		t.Errorf("lock file = %q, want %q", data, want)
	}
}

func TestReadHeldPID_Missing(t *testing.T) {
	t.Parallel()

	pid, held, err := ReadHeldPID(filepath.Join(t.TempDir(), "missing.lock"))
	if err != nil || held || pid != 0 {
		t.Errorf("ReadHeldPID on missing file = (%d, %v, %v)", pid, held, err)
	}
}

func TestIsProcessAlive(t *testing.T) {
	t.Parallel()

	if !isProcessAlive(os.Getpid()) {
		t.Error("current process should be alive")
	}
	if isProcessAlive(999999999) {
		t.Error("PID 999999999 should not be alive")
	}
}
