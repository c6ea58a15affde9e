// Package config provides configuration management for ringlist.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds all the path configurations for ringlist.
type Paths struct {
	// ConfigDir is the directory for configuration files (~/.config/ringlist)
	ConfigDir string

	// DataDir is the directory for data files (~/.local/share/ringlist)
	DataDir string

	// RuntimeDir is the directory for runtime files like sockets and locks
	RuntimeDir string
}

// DefaultPaths returns the default paths based on XDG Base Directory spec.
// On Windows, it uses %APPDATA% instead.
func DefaultPaths() *Paths {
	home := homeDir()

	if runtime.GOOS == "windows" {
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}

		return &Paths{
			ConfigDir:  filepath.Join(appData, "ringlist"),
			DataDir:    filepath.Join(localAppData, "ringlist"),
			RuntimeDir: filepath.Join(localAppData, "ringlist", "run"),
		}
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		runtimeDir = filepath.Join(home, ".ringlist", "run")
	} else {
		runtimeDir = filepath.Join(runtimeDir, "ringlist")
	}

	return &Paths{
		ConfigDir:  filepath.Join(configHome, "ringlist"),
		DataDir:    filepath.Join(dataHome, "ringlist"),
		RuntimeDir: runtimeDir,
	}
}

// ConfigFile returns the path to the main configuration file.
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// DatabaseFile returns the path to the SQLite item database.
func (p *Paths) DatabaseFile() string {
	return filepath.Join(p.DataDir, "items.db")
}

// SocketFile returns the path to the page server's Unix domain socket.
func (p *Paths) SocketFile() string {
	return filepath.Join(p.RuntimeDir, "ringlist.sock")
}

// PIDFile returns the path to the page server PID file.
func (p *Paths) PIDFile() string {
	return filepath.Join(p.RuntimeDir, "ringlist.pid")
}

// ServerLockFile returns the path to the page server's single-instance lock.
func (p *Paths) ServerLockFile() string {
	return filepath.Join(p.RuntimeDir, "server.lock")
}

// LockFile returns the path to the browser's advisory lock.
func (p *Paths) LockFile() string {
	return filepath.Join(p.RuntimeDir, "browse.lock")
}

// LogDir returns the path to the log directory.
func (p *Paths) LogDir() string {
	return filepath.Join(p.DataDir, "logs")
}

// LogFile returns the path to the server log file.
func (p *Paths) LogFile() string {
	return filepath.Join(p.LogDir(), "server.log")
}

// EnsureDirectories creates all necessary directories.
func (p *Paths) EnsureDirectories() error {
	dirs := []string{
		p.ConfigDir,
		p.DataDir,
		p.RuntimeDir,
		p.LogDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		if runtime.GOOS == "windows" {
			return os.Getenv("USERPROFILE")
		}
		return os.Getenv("HOME")
	}
	return home
}
