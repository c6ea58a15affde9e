package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/ringlist/internal/config"
	"github.com/runger/ringlist/internal/daemon"
	rlog "github.com/runger/ringlist/internal/log"
	"github.com/runger/ringlist/internal/storage"
)

var (
	serveIdleTimeout time.Duration
	serveQuiet       bool
	stopTimeout      time.Duration
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the page server in the foreground",
	GroupID: groupServer,
	Long: `Run the page server on its Unix socket until interrupted.

Logs are written as JSON lines to the server log file and, unless --quiet is
given, to stderr. SIGHUP reloads the log level from the config file.

Examples:
  ringlist serve
  ringlist serve --idle-timeout 30m`,
	RunE: runServe,
}

var stopCmd = &cobra.Command{
	Use:     "stop",
	Short:   "Stop the running page server",
	GroupID: groupServer,
	RunE: func(cmd *cobra.Command, args []string) error {
		paths := config.DefaultPaths()
		err := daemon.Stop(paths, stopTimeout)
		if errors.Is(err, daemon.ErrNotRunning) {
			fmt.Fprintf(cmd.OutOrStdout(), "Server: %snot running%s\n", colorDim, colorReset)
			// A crashed server leaves its socket behind.
			return daemon.CleanupStale(paths)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Server stopped.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Check page server status",
	GroupID: groupServer,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if daemon.IsRunning(config.DefaultPaths()) {
			fmt.Fprintf(out, "Server: %srunning%s\n", colorGreen, colorReset)
		} else {
			fmt.Fprintf(out, "Server: %snot running%s\n", colorDim, colorReset)
		}
		fmt.Fprintf(out, "Socket:   %s\n", cfg.SocketPath())
		fmt.Fprintf(out, "Database: %s\n", cfg.DatabasePath())
		return nil
	},
}

func init() {
	serveCmd.Flags().DurationVar(&serveIdleTimeout, "idle-timeout", 0, "exit after this long without requests (0 disables)")
	serveCmd.Flags().BoolVarP(&serveQuiet, "quiet", "q", false, "log to the log file only")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 10*time.Second, "time to wait before killing the server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	logFile, err := openLogFile(cfg, paths)
	if err != nil {
		return err
	}
	defer logFile.Close()

	var out io.Writer = logFile
	if !serveQuiet {
		out = io.MultiWriter(os.Stderr, logFile)
	}

	level := new(slog.LevelVar)
	if l, err := rlog.ParseLevel(cfg.Server.LogLevel); err == nil {
		level.Set(l)
	}
	logger := slog.New(rlog.Handler(out, level))

	store, err := storage.NewSQLiteStore(cfg.DatabasePath(),
		storage.WithBusyTimeout(cfg.Storage.BusyTimeoutMs),
		storage.WithLogger(logger),
	)
	if err != nil {
		rlog.LogSQLiteError(logger, "open", err)
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	items, err := store.CountItems(ctx, storage.Filter{})
	if err != nil {
		rlog.LogSQLiteError(logger, "count", err)
	}
	rlog.LogStartup(logger, rlog.StartupInfo{
		Version:      Version,
		GitCommit:    GitCommit,
		ConfigPath:   configFile(),
		DatabasePath: cfg.DatabasePath(),
		SocketPath:   cfg.SocketPath(),
		Items:        items,
		PID:          os.Getpid(),
	})

	err = daemon.Run(ctx, &daemon.ServerConfig{
		Store:       store,
		Paths:       paths,
		SocketPath:  cfg.SocketPath(),
		Logger:      logger,
		IdleTimeout: serveIdleTimeout,
		ReloadFn:    reloadLogLevel(level),
	})
	reason := "stopped"
	if err != nil {
		reason = err.Error()
	}
	rlog.LogShutdown(logger, reason)
	return err
}

// reloadLogLevel re-reads the config file and applies its log level.
func reloadLogLevel(level *slog.LevelVar) daemon.ReloadFunc {
	return func() error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		l, err := rlog.ParseLevel(cfg.Server.LogLevel)
		if err != nil {
			return err
		}
		level.Set(l)
		return nil
	}
}

// serverLogPath returns the configured server log file or the default one.
func serverLogPath(cfg *config.Config, paths *config.Paths) string {
	if cfg.Server.LogFile != "" {
		return cfg.Server.LogFile
	}
	return paths.LogFile()
}

func openLogFile(cfg *config.Config, paths *config.Paths) (*os.File, error) {
	path := serverLogPath(cfg, paths)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // G304: path from trusted config
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
