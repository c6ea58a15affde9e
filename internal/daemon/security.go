package daemon

import (
	"errors"
	"fmt"
	"os"
)

// ErrRunningAsRoot is returned when the server detects it is running as root.
var ErrRunningAsRoot = errors.New("refusing to run as root (UID 0): the page server must run as a regular user")

// ErrInsecureDirectory is returned when a runtime directory is accessible to
// other users.
var ErrInsecureDirectory = errors.New("runtime directory has insecure permissions")

// CheckNotRoot returns ErrRunningAsRoot when the effective UID is 0.
func CheckNotRoot() error {
	if os.Geteuid() == 0 {
		return ErrRunningAsRoot
	}
	return nil
}

// ValidateDirectoryPermissions checks that dirPath is a directory with mode
// exactly 0700. A missing directory is accepted.
func ValidateDirectoryPermissions(dirPath string) error {
	info, err := os.Stat(dirPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dirPath)
	}
	if perm := info.Mode().Perm(); perm != 0o700 {
		return fmt.Errorf("%w: %s has mode %o; expected exactly 0700", ErrInsecureDirectory, dirPath, perm)
	}
	return nil
}

// EnsureSecureDirectory creates dirPath with mode 0700, or tightens the mode
// of an existing directory.
func EnsureSecureDirectory(dirPath string) error {
	err := ValidateDirectoryPermissions(dirPath)
	switch {
	case err == nil:
		return os.MkdirAll(dirPath, 0o700)
	case errors.Is(err, ErrInsecureDirectory):
		if err := os.Chmod(dirPath, 0o700); err != nil { //nolint:gosec // G302: runtime directory
			return fmt.Errorf("failed to fix permissions on %s: %w", dirPath, err)
		}
		return nil
	default:
		return err
	}
}
