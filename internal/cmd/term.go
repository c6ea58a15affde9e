package cmd

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// minTermWidth is the narrowest terminal the browser draws in.
const minTermWidth = 20

var errBrowserLocked = errors.New("another browser is already running")

// termSize returns the size of the terminal behind f.
func termSize(f *os.File) (cols, rows int, err error) {
	ws, err := unix.IoctlGetWinsize(int(f.Fd()), unix.TIOCGWINSZ) //nolint:gosec // G115: fd fits in int
	if err != nil {
		return 0, 0, fmt.Errorf("not a terminal: %w", err)
	}
	return int(ws.Col), int(ws.Row), nil
}

// checkTerminal verifies that tty can host the browser.
func checkTerminal(tty *os.File) error {
	if os.Getenv("TERM") == "dumb" {
		return fmt.Errorf("TERM=dumb is not supported")
	}
	cols, _, err := termSize(tty)
	if err != nil {
		return err
	}
	if cols < minTermWidth {
		return fmt.Errorf("terminal too narrow (%d columns, need %d)", cols, minTermWidth)
	}
	return nil
}

// acquireLock takes an advisory exclusive lock on path so that only one
// browser draws on the terminal at a time.
func acquireLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // G304: path from trusted config
	if err != nil {
		return nil, fmt.Errorf("open lock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil { //nolint:gosec // G115: fd fits in int
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, errBrowserLocked
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return f, nil
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN) //nolint:gosec // G115: fd fits in int
	f.Close()
}
