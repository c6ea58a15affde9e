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

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/runger/ringlist/internal/config"
	"github.com/runger/ringlist/internal/daemon"
	rlog "github.com/runger/ringlist/internal/log"
	"github.com/runger/ringlist/internal/picker"
	"github.com/runger/ringlist/internal/storage"
)

// socketWait bounds how long a remote browse waits for the server socket.
const socketWait = 500 * time.Millisecond

// ErrCancelled is returned when the browser is closed without a selection.
var ErrCancelled = errors.New("cancelled")

var (
	browseQuery string
	browseLocal bool
)

var browseCmd = &cobra.Command{
	Use:     "browse",
	Short:   "Scroll through the items in the terminal",
	GroupID: groupData,
	Long: `Open the item browser on /dev/tty. The selected item is printed to stdout.

Keys: up/down and ctrl+p/ctrl+n move, pgup/pgdown jump a page, typing
filters, ctrl+r reloads, enter selects, esc cancels.

By default pages come from the page server (browse.source: remote). Use
--local to read the database directly.

Examples:
  ringlist browse
  cmd=$(ringlist browse --query git)`,
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().StringVarP(&browseQuery, "query", "q", "", "initial filter query")
	browseCmd.Flags().BoolVar(&browseLocal, "local", false, "read the database directly instead of the page server")
}

func runBrowse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	query, err := picker.SanitizeQuery(browseQuery)
	if err != nil {
		return err
	}

	// stdout carries the result, so the UI runs on the controlling terminal.
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("cannot open /dev/tty: %w", err)
	}
	defer tty.Close()

	if err := checkTerminal(tty); err != nil {
		return err
	}

	paths := config.DefaultPaths()
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	lock, err := acquireLock(paths.LockFile())
	if err != nil {
		return err
	}
	defer releaseLock(lock)

	logger, closeLog := browseLogger(paths)
	defer closeLog()

	provider, closeProvider, err := openProvider(commandContext(cmd), cfg, browseLocal)
	if err != nil {
		return err
	}
	defer closeProvider()

	model, err := picker.NewModel(provider, cfg, logger)
	if err != nil {
		return err
	}
	if query != "" {
		model = model.WithQuery(query)
	}

	// Styles render for the tty, not for the piped stdout.
	lipgloss.SetColorProfile(termenv.NewOutput(tty).ColorProfile())

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(tty),
		tea.WithOutput(tty),
	)
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("browser: %w", err)
	}

	m, ok := final.(picker.Model)
	if !ok {
		return fmt.Errorf("browser: unexpected model type %T", final)
	}
	if m.IsCancelled() {
		return ErrCancelled
	}
	if result := m.Result(); result != "" {
		fmt.Fprintln(cmd.OutOrStdout(), result)
	}
	return nil
}

// openProvider returns the page source selected by cfg.Browse.Source or by
// local, with a function that releases it. The remote source needs a
// running page server.
func openProvider(ctx context.Context, cfg *config.Config, local bool) (picker.Provider, func(), error) {
	if local || cfg.Browse.Source == "local" {
		store, err := storage.NewSQLiteStore(cfg.DatabasePath(), storage.WithBusyTimeout(cfg.Storage.BusyTimeoutMs))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		return picker.NewStoreProvider(store), func() { store.Close() }, nil
	}

	if err := daemon.WaitForSocket(ctx, cfg.SocketPath(), socketWait); err != nil {
		return nil, nil, fmt.Errorf("page server not running at %s (start it with ringlist serve or use --local): %w",
			cfg.SocketPath(), err)
	}
	timeout := time.Duration(cfg.Server.FetchTimeoutMs) * time.Millisecond
	remote, err := picker.NewRemoteProvider(cfg.SocketPath(), timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to page server: %w", err)
	}
	return remote, func() { remote.Close() }, nil
}

// browseLogger logs to browse.log in the log directory when RINGLIST_DEBUG=1.
// The terminal belongs to the browser, so nothing is logged otherwise.
func browseLogger(paths *config.Paths) (*slog.Logger, func()) {
	if os.Getenv("RINGLIST_DEBUG") != "1" {
		return slog.New(rlog.Handler(io.Discard, slog.LevelError)), func() {}
	}
	f, err := os.OpenFile(filepath.Join(paths.LogDir(), "browse.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return slog.New(rlog.Handler(io.Discard, slog.LevelError)), func() {}
	}
	return rlog.New(&rlog.Config{Output: f, Debug: true}), func() { f.Close() }
}
