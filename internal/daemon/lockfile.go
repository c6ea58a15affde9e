package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// LockFile manages an exclusive lock file to prevent multiple server instances.
// It uses flock(2) with LOCK_EX|LOCK_NB for non-blocking exclusive locking.
type LockFile struct {
	file *os.File
	path string
}

// NewLockFile creates a new LockFile at the specified path.
// The lock is not acquired until Acquire is called.
func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

// ReadHeldPID returns the PID recorded in lockPath if (and only if) the file lock
// is currently held by another process. If the lock is not held (or the file does
// not exist), held will be false.
func ReadHeldPID(lockPath string) (pid int, held bool, err error) {
	f, err := os.OpenFile(lockPath, os.O_RDWR, 0) //nolint:gosec // G304: lock file path is from trusted config
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("open lock file: %w", err)
	}
	defer f.Close()

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB) //nolint:gosec // G115: fd fits in int
	switch {
	case err == nil:
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:gosec // G115: fd fits in int
		return 0, false, nil
	case isWouldBlock(err):
		return readPID(f), true, nil
	default:
		return 0, false, fmt.Errorf("flock: %w", err)
	}
}

// Acquire attempts to acquire an exclusive non-blocking lock.
// A lock held by a dead process is removed and acquisition retried once.
// On success, the current PID is written to the lock file.
func (l *LockFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	err := l.tryAcquire()
	if err == nil || !errors.Is(err, errLockHeld) {
		return err
	}

	f, openErr := os.Open(l.path)
	if openErr != nil {
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}
	stalePID := readPID(f)
	f.Close()

	if stalePID > 0 && !isProcessAlive(stalePID) {
		os.Remove(l.path)
		if err := l.tryAcquire(); err != nil {
			return fmt.Errorf("failed to acquire lock on retry: %w", err)
		}
		return nil
	}
	if stalePID > 0 {
		return fmt.Errorf("page server already running (PID %d), lock file: %s", stalePID, l.path)
	}
	return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
}

var errLockHeld = errors.New("lock held by another process")

func (l *LockFile) tryAcquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil { //nolint:gosec // G115: fd fits in int
		f.Close()
		if isWouldBlock(err) {
			return errLockHeld
		}
		return fmt.Errorf("flock %s: %w", l.path, err)
	}

	if err := writePID(f); err != nil {
		f.Close()
		return err
	}
	l.file = f
	return nil
}

// Release releases the lock and removes the lock file.
func (l *LockFile) Release() error {
	if l.file == nil {
		return nil
	}

	// Best effort; closing the file drops the lock anyway.
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN) //nolint:gosec // G115: fd fits in int

	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close lock file: %w", err)
	}
	l.file = nil

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	return nil
}

// Path returns the lock file path.
func (l *LockFile) Path() string {
	return l.path
}

func writePID(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate lock file: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek lock file: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		return fmt.Errorf("failed to write PID to lock file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync lock file: %w", err)
	}
	return nil
}

// readPID reads a PID from an already-open file, returning 0 if absent.
func readPID(f *os.File) int {
	if _, err := f.Seek(0, 0); err != nil {
		return 0
	}
	buf := make([]byte, 32)
	n, err := f.Read(buf)
	if err != nil || n == 0 {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(buf[:n])))
	if err != nil {
		return 0
	}
	return pid
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN)
}

// isProcessAlive checks if a process with the given PID is running.
func isProcessAlive(pid int) bool {
	// Signal 0 performs the permission and existence checks only.
	return unix.Kill(pid, 0) == nil
}
