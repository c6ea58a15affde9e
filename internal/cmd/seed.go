package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runger/ringlist/internal/config"
	"github.com/runger/ringlist/internal/storage"
)

var (
	seedCount   int
	seedPrefix  string
	seedReplace bool
)

// seedBatch is the number of lines appended per transaction.
const seedBatch = 500

var seedCmd = &cobra.Command{
	Use:     "seed [file...]",
	Short:   "Append items to the item store",
	GroupID: groupData,
	Long: `Append one item per non-empty line of the given files, or of stdin when
no file is named. With --count, generate numbered items instead.

Examples:
  ringlist seed ~/.bash_history
  ls -1 /usr/bin | ringlist seed
  ringlist seed --count 10000 --replace`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 0, "generate this many numbered items")
	seedCmd.Flags().StringVar(&seedPrefix, "prefix", "item", "text prefix for generated items")
	seedCmd.Flags().BoolVar(&seedReplace, "replace", false, "delete existing items first")
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedCount < 0 {
		return fmt.Errorf("--count must not be negative")
	}
	if seedCount > 0 && len(args) > 0 {
		return fmt.Errorf("--count cannot be combined with files")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.DefaultPaths().EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.DatabasePath(), storage.WithBusyTimeout(cfg.Storage.BusyTimeoutMs))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if seedReplace {
		removed, err := clearItems(ctx, store)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d items\n", removed)
	}

	var added int
	switch {
	case seedCount > 0:
		added, err = seedGenerated(ctx, store, seedPrefix, seedCount)
	case len(args) == 0:
		added, err = seedLines(ctx, store, cmd.InOrStdin())
	default:
		for _, path := range args {
			n, ferr := seedFile(ctx, store, path)
			added += n
			if ferr != nil {
				err = ferr
				break
			}
		}
	}
	if err != nil {
		return err
	}

	total, err := store.CountItems(ctx, storage.Filter{})
	if err != nil {
		return fmt.Errorf("failed to count items: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s%d%s items (%d total)\n", colorGreen, added, colorReset, total)
	return nil
}

func clearItems(ctx context.Context, store storage.Store) (int64, error) {
	items, err := store.ListItems(ctx, storage.ItemQuery{})
	if err != nil {
		return 0, fmt.Errorf("failed to list items: %w", err)
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ItemID
	}
	n, err := store.DeleteItems(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}
	return n, nil
}

func seedGenerated(ctx context.Context, store storage.Store, prefix string, count int) (int, error) {
	width := len(fmt.Sprint(count))
	batch := make([]string, 0, seedBatch)
	added := 0
	for i := 1; i <= count; i++ {
		batch = append(batch, fmt.Sprintf("%s %0*d", prefix, width, i))
		if len(batch) == seedBatch || i == count {
			n, err := appendBatch(ctx, store, batch)
			added += n
			if err != nil {
				return added, err
			}
			batch = batch[:0]
		}
	}
	return added, nil
}

func seedFile(ctx context.Context, store storage.Store, path string) (int, error) {
	f, err := os.Open(path) //nolint:gosec // G304: user-named input file
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return seedLines(ctx, store, f)
}

// seedLines appends every non-blank line of r, trailing whitespace trimmed.
func seedLines(ctx context.Context, store storage.Store, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	batch := make([]string, 0, seedBatch)
	added := 0
	flush := func() error {
		n, err := appendBatch(ctx, store, batch)
		added += n
		batch = batch[:0]
		return err
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		batch = append(batch, line)
		if len(batch) == seedBatch {
			if err := flush(); err != nil {
				return added, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return added, fmt.Errorf("failed to read input: %w", err)
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return added, err
		}
	}
	return added, nil
}

func appendBatch(ctx context.Context, store storage.Store, texts []string) (int, error) {
	items, err := store.AppendItems(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to append items: %w", err)
	}
	return len(items), nil
}
