package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	rlog "github.com/runger/ringlist/internal/log"
	"github.com/runger/ringlist/internal/pager"
	"github.com/runger/ringlist/internal/picker"
)

var (
	walkQuery    string
	walkLocal    bool
	walkPageSize int
	walkShow     bool
)

var walkCmd = &cobra.Command{
	Use:     "walk <op>...",
	Short:   "Drive the pager without a terminal and print its state",
	GroupID: groupData,
	Long: `Run a sequence of pager operations and print the window state after each.

Operations:
  next        load the page after the highest resident page
  prev        load the page before the lowest resident page
  resize:N    change the page size to N
  reset       drop every resident page

Boundary errors are reported and the walk continues; other errors stop it.
Set RINGLIST_DEBUG=1 to trace ring scrolls and evictions on stderr.

Examples:
  ringlist walk next next next prev
  ringlist walk --page-size 10 next next resize:25 next --show`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWalk,
}

func init() {
	walkCmd.Flags().StringVarP(&walkQuery, "query", "q", "", "filter query")
	walkCmd.Flags().BoolVar(&walkLocal, "local", false, "read the database directly instead of the page server")
	walkCmd.Flags().IntVar(&walkPageSize, "page-size", 0, "initial page size (default: pager.page_size)")
	walkCmd.Flags().BoolVar(&walkShow, "show", false, "print the resident items after each operation")
}

// walkOp is one parsed pager operation.
type walkOp struct {
	name string
	size int // resize only
}

func (o walkOp) String() string {
	if o.name == "resize" {
		return fmt.Sprintf("resize:%d", o.size)
	}
	return o.name
}

func parseWalkOps(args []string) ([]walkOp, error) {
	ops := make([]walkOp, 0, len(args))
	for _, arg := range args {
		name, value, hasValue := strings.Cut(strings.ToLower(arg), ":")
		switch name {
		case "next", "prev", "reset":
			if hasValue {
				return nil, fmt.Errorf("operation %q takes no value", name)
			}
			ops = append(ops, walkOp{name: name})
		case "resize":
			size, err := strconv.Atoi(value)
			if err != nil || size <= 0 {
				return nil, fmt.Errorf("invalid resize %q: want resize:N with N > 0", arg)
			}
			ops = append(ops, walkOp{name: name, size: size})
		default:
			return nil, fmt.Errorf("unknown operation %q", arg)
		}
	}
	return ops, nil
}

func runWalk(cmd *cobra.Command, args []string) error {
	ops, err := parseWalkOps(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	query, err := picker.SanitizeQuery(walkQuery)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	provider, closeProvider, err := openProvider(ctx, cfg, walkLocal)
	if err != nil {
		return err
	}
	defer closeProvider()

	p, err := picker.NewPager(provider, cfg.Pager, query, rlog.NewFromEnv())
	if err != nil {
		return err
	}
	pageSize := walkPageSize
	if pageSize == 0 {
		pageSize = cfg.Pager.PageSize
	}
	if err := p.SetPageSize(pageSize); err != nil {
		return err
	}

	return walk(ctx, cmd.OutOrStdout(), p, ops, walkShow)
}

// walk applies ops to p in order, printing the state after each.
func walk(ctx context.Context, w io.Writer, p *pager.Pager[*picker.Row], ops []walkOp, show bool) error {
	for _, op := range ops {
		var err error
		switch op.name {
		case "next":
			_, err = p.Next(ctx)
		case "prev":
			_, err = p.Previous(ctx)
		case "resize":
			_, err = p.Resize(ctx, op.size)
		case "reset":
			// Keep the known total so the next op still sees pages ahead.
			total, _ := p.Total()
			p.Reset(total)
		}

		switch {
		case errors.Is(err, pager.ErrBoundary), errors.Is(err, pager.ErrSamePageSize):
			fmt.Fprintf(w, "%-10s %s%v%s\n", op, colorYellow, err, colorReset)
			continue
		case err != nil:
			return fmt.Errorf("%s: %w", op, err)
		}

		fmt.Fprintf(w, "%-10s %s\n", op, describePager(p))
		if show {
			if err := printResident(w, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func describePager(p *pager.Pager[*picker.Row]) string {
	size, _ := p.PageSize()
	total, _ := p.Total()

	minPage, maxPage, err := p.Pages()
	if err != nil {
		return fmt.Sprintf("empty page_size=%d total=%d next=%t", size, total, p.HasNext())
	}
	span, _ := p.Span()
	return fmt.Sprintf("span=%s pages=%d-%d page_size=%d total=%d next=%t prev=%t",
		span, minPage, maxPage, size, total, p.HasNext(), p.HasPrevious())
}

// printResident lists each cached page with its slot range and loaded rows.
func printResident(w io.Writer, p *pager.Pager[*picker.Row]) error {
	minPage, maxPage, err := p.Pages()
	if err != nil {
		return nil
	}
	for pageNum := minPage; pageNum <= maxPage; pageNum++ {
		r, err := p.PageRange(pageNum)
		if err != nil {
			return err
		}
		rows, err := p.SlotsIn(r)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  page %d %s\n", pageNum, r)
		for i, row := range rows {
			if !row.Loaded {
				continue
			}
			fmt.Fprintf(w, "    %s%4d%s %6d  %s\n", colorDim, r.Start+i, colorReset, row.Index, row.Text)
		}
	}
	return nil
}
