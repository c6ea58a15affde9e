package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/runger/ringlist/internal/config"
	rlog "github.com/runger/ringlist/internal/log"
)

var (
	logsFollow bool
	logsLines  int
	logsLevel  string
)

var logsCmd = &cobra.Command{
	Use:     "logs",
	Short:   "View page server logs",
	GroupID: groupServer,
	Long: `Print the last lines of the page server log, optionally following it.

Examples:
  ringlist logs
  ringlist logs -f
  ringlist logs --level warn -n 200`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of lines to show")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "only show records at or above this level")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	minLevel, err := rlog.ParseLevel(logsLevel)
	if err != nil {
		return err
	}
	if logsLevel == "" {
		minLevel = slog.LevelDebug
	}

	path := serverLogPath(cfg, config.DefaultPaths())
	out := cmd.OutOrStdout()

	f, err := os.Open(path) //nolint:gosec // G304: path from trusted config
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "No log file found at: %s\n", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	keep := func(line string) bool { return lineLevel(line) >= minLevel }

	lines, err := tailLines(f, logsLines, keep)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}

	if !logsFollow {
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return followLines(ctx, f, out, keep)
}

// tailLines reads r to the end and returns its last n lines that pass keep.
func tailLines(r io.Reader, n int, keep func(string) bool) ([]string, error) {
	if n <= 0 {
		n = 0
	}
	ring := make([]string, n)
	count := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if n == 0 || !keep(line) {
			continue
		}
		ring[count%n] = line
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	if count <= n {
		return ring[:count], nil
	}
	start := count % n
	return append(ring[start:], ring[:start]...), nil
}

// followLines prints lines appended to r until ctx is done.
func followLines(ctx context.Context, r io.Reader, w io.Writer, keep func(string) bool) error {
	reader := bufio.NewReader(r)
	var partial string
	for {
		chunk, err := reader.ReadString('\n')
		partial += chunk
		if err == nil {
			line := partial[:len(partial)-1]
			partial = ""
			if keep(line) {
				fmt.Fprintln(w, line)
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read log: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// lineLevel returns the level of a JSON log record. Lines that are not
// records count as errors so that they are never filtered out.
func lineLevel(line string) slog.Level {
	var rec struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal([]byte(line), &rec); err != nil || rec.Level == "" {
		return slog.LevelError
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(rec.Level)); err != nil {
		return slog.LevelError
	}
	return l
}
