package picker

import (
	"context"
	"log/slog"

	"github.com/runger/ringlist/internal/config"
	"github.com/runger/ringlist/internal/pager"
	"github.com/runger/ringlist/internal/window"
)

// Row is one ring slot of the browser. The pager recycles rows; their
// contents belong to whichever page currently covers them.
type Row struct {
	Index  int // Position of the item in the filtered dataset
	ID     string
	Text   string
	Loaded bool
	Hidden bool
}

// rowLoader fills rows from a Provider for the current query.
type rowLoader struct {
	provider Provider
	query    string
}

// Compile-time check that rowLoader implements pager.PageLoader.
var _ pager.PageLoader[*Row] = (*rowLoader)(nil)

func (l *rowLoader) Load(ctx context.Context, pageNum, pageSize int, next func() (*Row, bool)) (int, error) {
	page, err := l.provider.FetchPage(ctx, l.query, pageNum, pageSize)
	if err != nil {
		return 0, err
	}
	first := (pageNum - 1) * pageSize
	for i, it := range page.Items {
		row, ok := next()
		if !ok {
			break
		}
		row.Index, row.ID, row.Text, row.Loaded = first+i, it.ID, it.Text, true
	}
	return page.Total, nil
}

func (l *rowLoader) Unload(row *Row) {
	*row = Row{Hidden: row.Hidden}
}

func (l *rowLoader) Show(row *Row) { row.Hidden = false }

func (l *rowLoader) Hide(row *Row) { row.Hidden = true }

// NewPager creates an initialized pager of rows fed by provider for query.
// The page size is left unset.
func NewPager(provider Provider, cfg config.PagerConfig, query string, logger *slog.Logger) (*pager.Pager[*Row], error) {
	return newRowPager(&rowLoader{provider: provider, query: query}, cfg, logger)
}

func newRowPager(loader *rowLoader, cfg config.PagerConfig, logger *slog.Logger) (*pager.Pager[*Row], error) {
	p, err := pager.New(pager.Options[*Row]{
		Capacity:           cfg.Capacity,
		Slots:              window.SlotFunc[*Row](func() *Row { return &Row{} }),
		Loader:             loader,
		MaxCacheSize:       cfg.MaxCacheSize,
		LargePageThreshold: cfg.LargePageThreshold,
		LargePageCacheSize: cfg.LargePageCacheSize,
		Logger:             logger,
	})
	if err != nil {
		return nil, err
	}
	if err := p.Init(); err != nil {
		return nil, err
	}
	return p, nil
}

// resizeRows changes the page size while keeping every row's Index equal
// to its dataset position and the cursor resident. Pages can be resized in
// place only when page 1 heads the cache and the window is anchored at its
// start; otherwise the pages holding the cursor are reloaded at the new size.
func resizeRows(ctx context.Context, p *pager.Pager[*Row], pageSize, cursor int) error {
	minPage, maxPage, err := p.Pages()
	if err != nil {
		_, err = p.Resize(ctx, pageSize)
		return err
	}
	if last, err := p.MaxPageNum(); err == nil && minPage == 1 && maxPage < last {
		if _, err := p.Resize(ctx, pageSize); err != nil {
			return err
		}
		if minPage, maxPage, err = p.Pages(); err != nil {
			return err
		}
		total, _ := p.Total()
		if first, end := (minPage-1)*pageSize, min(maxPage*pageSize, total)-1; cursor >= first && cursor <= end {
			return nil
		}
	}

	total, err := p.Total()
	if err != nil {
		return err
	}
	p.Reset(total)
	if err := p.SetPageSize(pageSize); err != nil {
		return err
	}
	last, err := p.MaxPageNum()
	if err != nil {
		return err
	}
	// Previous needs two cached pages, so the cursor page is loaded with a
	// neighbour: the next one, or the one before when it is the last page.
	anchor := min(cursor/pageSize+1, last)
	if anchor == last && anchor > 1 {
		anchor--
	}
	if _, err := p.Seek(ctx, max(anchor, 1)); err != nil {
		return err
	}
	if p.HasNext() {
		_, err = p.Next(ctx)
	}
	return err
}
