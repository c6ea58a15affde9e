package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/runger/ringlist/internal/config"
)

// ErrNotRunning is returned by Stop when no page server holds the lock.
var ErrNotRunning = errors.New("page server not running")

// ReloadFunc is called on SIGHUP to reload configuration.
type ReloadFunc func() error

// Run starts the page server and blocks until shutdown.
//   - SIGTERM/SIGINT: graceful shutdown
//   - SIGHUP: reload configuration
//   - SIGPIPE: ignored
func Run(ctx context.Context, cfg *ServerConfig) error {
	if err := CheckNotRoot(); err != nil {
		return err
	}

	server, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := EnsureSecureDirectory(server.paths.RuntimeDir); err != nil {
		return fmt.Errorf("failed to secure runtime directory: %w", err)
	}

	lockFile := NewLockFile(server.paths.ServerLockFile())
	if err := lockFile.Acquire(); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer lockFile.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signal.Ignore(unix.SIGPIPE)

	sigChan := make(chan os.Signal, 4)
	signal.Notify(sigChan, unix.SIGTERM, unix.SIGINT, unix.SIGHUP)
	defer signal.Stop(sigChan)

	go func() {
		for {
			select {
			case sig := <-sigChan:
				switch sig {
				case unix.SIGTERM, unix.SIGINT:
					server.logger.Info("received shutdown signal", "signal", sig)
					cancel()
					return
				case unix.SIGHUP:
					if cfg.ReloadFn == nil {
						server.logger.Debug("no reload function configured, ignoring SIGHUP")
						continue
					}
					if err := cfg.ReloadFn(); err != nil {
						server.logger.Error("failed to reload configuration", "error", err)
					} else {
						server.logger.Info("configuration reloaded")
					}
				}
			case <-server.Done():
				cancel()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return server.Start(ctx)
}

// IsRunning reports whether a page server is alive for the given paths.
func IsRunning(paths *config.Paths) bool {
	return runningPID(paths) > 0
}

// runningPID returns the PID of the live page server, or 0.
func runningPID(paths *config.Paths) int {
	if pid, err := ReadPID(paths.PIDFile()); err == nil && pid > 0 && isProcessAlive(pid) {
		return pid
	}

	// The PID file may be stale or missing while the server still holds the lock.
	pid, held, err := ReadHeldPID(paths.ServerLockFile())
	if err != nil || !held || pid <= 0 || !isProcessAlive(pid) {
		return 0
	}
	return pid
}

// ReadPID reads the PID from the PID file.
func ReadPID(pidPath string) (int, error) {
	data, err := os.ReadFile(pidPath) //nolint:gosec // G304: PID path is from trusted config
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID: %w", err)
	}
	return pid, nil
}

// Stop sends SIGTERM to the running page server and waits up to timeout for
// it to exit, killing it after that.
func Stop(paths *config.Paths, timeout time.Duration) error {
	pid := runningPID(paths)
	if pid == 0 {
		return ErrNotRunning
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	deadline := time.After(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			_ = unix.Kill(pid, unix.SIGKILL)
			return nil
		case <-ticker.C:
			if !isProcessAlive(pid) {
				return nil
			}
		}
	}
}

// CleanupStale removes the socket and PID file left by a dead server.
func CleanupStale(paths *config.Paths) error {
	if IsRunning(paths) {
		return fmt.Errorf("page server is still running")
	}

	for _, path := range []string{paths.SocketFile(), paths.PIDFile()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}

// WaitForSocket waits for socketPath to appear. It returns an error if the
// socket is not available within timeout or ctx is cancelled.
func WaitForSocket(ctx context.Context, socketPath string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if _, err := os.Stat(socketPath); err == nil {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("socket not available after %v", timeout)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
