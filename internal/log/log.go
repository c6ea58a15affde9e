// Package log builds the JSON-lines structured logger shared by the ringlist
// server and CLI.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config configures the structured logger.
type Config struct {
	// Output is the writer for log output (default: os.Stderr)
	Output io.Writer

	// Level is the minimum log level (default: LevelInfo)
	Level slog.Level

	// Debug enables debug level logging (overrides Level)
	Debug bool
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: os.Stderr,
		Level:  slog.LevelInfo,
	}
}

// New creates a JSON-lines logger. Records look like:
//
//	{"ts":"2026-01-15T10:30:00Z","level":"INFO","msg":"server started","socket_path":"/run/user/1000/ringlist/ringlist.sock"}
//
// Levels:
//   - debug: page navigation and cache state (RINGLIST_DEBUG=1)
//   - info: startup, shutdown, seeding
//   - warn: recoverable inconsistencies such as duplicate page inserts
//   - error: failed requests and storage errors
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	level := cfg.Level
	if cfg.Debug {
		level = slog.LevelDebug
	}

	return slog.New(Handler(output, level))
}

// Handler returns the JSON handler behind New. Passing a *slog.LevelVar lets
// callers change the level while the logger is in use.
func Handler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Key = "ts"
			}
			return a
		},
	})
}

// NewFromEnv creates a logger on stderr. RINGLIST_DEBUG=1 enables debug logging.
func NewFromEnv() *slog.Logger {
	cfg := DefaultConfig()
	if os.Getenv("RINGLIST_DEBUG") == "1" {
		cfg.Debug = true
	}
	return New(cfg)
}

// ParseLevel maps a config log level (debug, info, warn, error) to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// StartupInfo holds information to log at server startup.
type StartupInfo struct {
	Version      string
	GitCommit    string
	ConfigPath   string
	DatabasePath string
	SocketPath   string
	Items        int
	PID          int
}

// LogStartup logs server startup information.
func LogStartup(logger *slog.Logger, info StartupInfo) {
	logger.Info("server started",
		"version", info.Version,
		"git_commit", info.GitCommit,
		"config_path", info.ConfigPath,
		"database_path", info.DatabasePath,
		"socket_path", info.SocketPath,
		"items", info.Items,
		"pid", info.PID,
	)
}

// LogShutdown logs server shutdown.
func LogShutdown(logger *slog.Logger, reason string) {
	logger.Info("server shutting down", "reason", reason)
}

// LogSQLiteError logs SQLite errors.
func LogSQLiteError(logger *slog.Logger, operation string, err error) {
	logger.Error("sqlite error", "operation", operation, "error", err)
}
