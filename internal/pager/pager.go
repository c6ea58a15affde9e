// Package pager pages a remote dataset through a fixed ring of slots.
//
// A Pager keeps a few contiguous pages resident (see pagecache), loads the
// next or previous page on demand, and recycles ring slots (see window) when
// a new page would fall outside the ring. It holds no lock: callers must not
// issue Next, Previous, Resize or Reset while another of them is running.
package pager

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/runger/ringlist/internal/pagecache"
	"github.com/runger/ringlist/internal/window"
)

// Range is an inclusive span of slot indexes.
type Range = pagecache.Range

// Options configures a Pager.
type Options[S any] struct {
	// Capacity is the number of slots in the ring (required).
	Capacity int
	// Slots creates slots and observes their relocation (required).
	Slots window.SlotManager[S]
	// Loader fills and clears slots (required).
	Loader PageLoader[S]

	// PageSize is the initial page size. Zero leaves it unset until
	// SetPageSize or Resize.
	PageSize int

	// MaxCacheSize bounds resident pages (default 3).
	MaxCacheSize int
	// LargePageThreshold is the page size from which LargePageCacheSize
	// applies (default 67).
	LargePageThreshold int
	// LargePageCacheSize bounds resident pages for large pages (default 2).
	LargePageCacheSize int

	// Logger receives navigation traces at debug level (default slog.Default()).
	Logger *slog.Logger
}

// Pager orchestrates page loads over a ring window.
type Pager[S any] struct {
	win    *window.Window[S]
	cache  *pagecache.Cache
	slots  *slotLoader[S]
	logger *slog.Logger

	total      int
	hasTotal   bool
	pageSize   int // 0 until configured
	maxPageNum int
}

// New creates a pager. Call Init before the first Next.
func New[S any](opts Options[S]) (*Pager[S], error) {
	if opts.Loader == nil {
		return nil, ErrNoLoader
	}
	win, err := window.New[S](opts.Capacity, opts.Slots)
	if err != nil {
		return nil, fmt.Errorf("pager: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pager[S]{
		win:    win,
		logger: logger,
	}
	p.slots = &slotLoader[S]{
		loader:   opts.Loader,
		win:      win,
		lastPage: p.isLastPage,
	}

	cache, err := pagecache.New(p.slots.unload,
		pagecache.WithMaxSize(opts.MaxCacheSize),
		pagecache.WithLargePage(opts.LargePageThreshold, opts.LargePageCacheSize),
		pagecache.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("pager: %w", err)
	}
	p.cache = cache

	if opts.PageSize != 0 {
		if err := p.SetPageSize(opts.PageSize); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Init creates the ring slots.
func (p *Pager[S]) Init() error {
	return p.win.Init()
}

// SetPageSize configures the page size while no page is cached. Once pages
// are resident use Resize.
func (p *Pager[S]) SetPageSize(n int) error {
	if err := p.checkPageSize(n); err != nil {
		return err
	}
	if p.cache.Len() > 0 {
		return fmt.Errorf("%w: use Resize", ErrPagesCached)
	}
	p.setPageSize(n)
	return nil
}

func (p *Pager[S]) checkPageSize(n int) error {
	if n <= 0 {
		return ErrInvalidPageSize
	}
	// The ring must hold a full cache of pages plus the slot the scroll
	// arithmetic keeps free at the trailing edge.
	if need := p.cache.MaxSizeFor(n)*n + 1; p.win.Len() < need {
		return fmt.Errorf("%w: %d pages of %d need %d slots, window has %d",
			ErrPageTooLarge, p.cache.MaxSizeFor(n), n, need, p.win.Len())
	}
	return nil
}

// MaxPageSize returns the largest page size the ring can hold.
func (p *Pager[S]) MaxPageSize() int {
	for n := p.win.Len() - 1; n > 0; n-- {
		if p.cache.MaxSizeFor(n)*n+1 <= p.win.Len() {
			return n
		}
	}
	return 0
}

// Total returns the dataset size reported by the last load or Reset.
func (p *Pager[S]) Total() (int, error) {
	if !p.hasTotal {
		return 0, fmt.Errorf("%w: total", ErrUninitialized)
	}
	return p.total, nil
}

// PageSize returns the current page size.
func (p *Pager[S]) PageSize() (int, error) {
	if p.pageSize == 0 {
		return 0, fmt.Errorf("%w: page size", ErrUninitialized)
	}
	return p.pageSize, nil
}

// MaxPageNum returns ceil(total / pageSize).
func (p *Pager[S]) MaxPageNum() (int, error) {
	if !p.hasTotal || p.pageSize == 0 {
		return 0, fmt.Errorf("%w: total or page size", ErrUninitialized)
	}
	return p.maxPageNum, nil
}

func (p *Pager[S]) setTotal(total int) {
	if total < 0 {
		total = 0
	}
	p.total = total
	p.hasTotal = true
	p.maxPageNum = pageCount(p.total, p.pageSize)
}

func (p *Pager[S]) setPageSize(n int) {
	p.pageSize = n
	p.cache.SetPageSize(n)
	p.maxPageNum = pageCount(p.total, p.pageSize)
}

func pageCount(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func (p *Pager[S]) isLastPage(pageNum, pageSize int) bool {
	return p.hasTotal && pageNum >= pageCount(p.total, pageSize)
}

func (p *Pager[S]) ready() error {
	if p.pageSize == 0 {
		return fmt.Errorf("%w: page size", ErrUninitialized)
	}
	if !p.win.Initialized() {
		return fmt.Errorf("%w: %w", ErrUninitialized, window.ErrNotInitialized)
	}
	return nil
}

func (p *Pager[S]) checkTotal(total int) error {
	if total != p.total {
		return fmt.Errorf("%w: had %d, loader reported %d", ErrTotalChanged, p.total, total)
	}
	return nil
}

// Next loads the page after the highest cached page and returns the window
// span. The first call loads page 1 and adopts the total it reports.
func (p *Pager[S]) Next(ctx context.Context) (Range, error) {
	if err := p.ready(); err != nil {
		return Range{}, err
	}

	if p.cache.Len() == 0 {
		return p.first(ctx)
	}

	maxPage, _ := p.cache.MaxPage()
	if p.hasTotal && maxPage >= p.maxPageNum {
		return Range{}, ErrAtLastPage
	}
	maxRange, _ := p.cache.MaxRange()

	nextNum := maxPage + 1
	r := Range{Start: maxRange.End + 1, End: maxRange.End + p.pageSize}
	p.cache.Set(nextNum, r)

	if n := p.win.Len(); r.End >= n {
		minRange, _ := p.cache.MinRange()
		moved := min(2*p.pageSize, minRange.Start-1)
		if moved < r.End-n+1 {
			return Range{}, fmt.Errorf("%w: page %d at %s, window %d", ErrWindowOverflow, nextNum, r, n)
		}
		if err := p.win.ScrollDown(moved); err != nil {
			return Range{}, err
		}
		p.cache.Shift(-moved)
		r = r.Shift(-moved)
		p.logger.Debug("window scrolled down", "moved", moved)
	}

	total, err := p.slots.load(ctx, nextNum, p.pageSize, r)
	if err != nil {
		return Range{}, fmt.Errorf("load page %d: %w", nextNum, err)
	}
	if err := p.checkTotal(total); err != nil {
		return Range{}, err
	}

	p.logger.Debug("next", "page", nextNum, "cache", p.cache.String())
	return p.cache.Span()
}

func (p *Pager[S]) first(ctx context.Context) (Range, error) {
	return p.loadAlone(ctx, 1)
}

// Seek loads pageNum into an empty cache at the start of the window and
// adopts the total it reports, so Next and Previous continue from there.
// Previous needs a second page, so callers usually follow with Next.
func (p *Pager[S]) Seek(ctx context.Context, pageNum int) (Range, error) {
	if err := p.ready(); err != nil {
		return Range{}, err
	}
	if p.cache.Len() > 0 {
		return Range{}, ErrPagesCached
	}
	if pageNum < 1 || (p.hasTotal && pageNum > max(p.maxPageNum, 1)) {
		return Range{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, pageNum, p.maxPageNum)
	}

	r, err := p.loadAlone(ctx, pageNum)
	if err != nil {
		return Range{}, err
	}
	if pageNum > max(p.maxPageNum, 1) {
		// The dataset shrank under the requested page.
		_ = p.cache.Remove(pageNum)
		return Range{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, pageNum, p.maxPageNum)
	}
	return r, nil
}

// loadAlone loads pageNum as the only cached page at [0, pageSize-1].
func (p *Pager[S]) loadAlone(ctx context.Context, pageNum int) (Range, error) {
	r := Range{Start: 0, End: p.pageSize - 1}
	p.cache.Set(pageNum, r)

	total, err := p.slots.load(ctx, pageNum, p.pageSize, r)
	if err != nil {
		_ = p.cache.Remove(pageNum)
		return Range{}, fmt.Errorf("load page %d: %w", pageNum, err)
	}
	p.setTotal(total)
	if pageNum >= p.maxPageNum {
		p.slots.hide(r.End+1, p.win.Len()-1)
	}

	p.logger.Debug("load", "page", pageNum, "total", total, "cache", p.cache.String())
	return r, nil
}

// Previous loads the page before the lowest cached page and returns the
// window span. It needs at least two cached pages.
func (p *Pager[S]) Previous(ctx context.Context) (Range, error) {
	if err := p.ready(); err != nil {
		return Range{}, err
	}
	if p.cache.Len() < 2 {
		return Range{}, ErrAtFirstPage
	}

	minPage, _ := p.cache.MinPage()
	if minPage == 1 {
		return Range{}, ErrAtFirstPage
	}
	minRange, _ := p.cache.MinRange()

	prevNum := minPage - 1
	r := Range{Start: minRange.Start - p.pageSize, End: minRange.Start - 1}
	p.cache.Set(prevNum, r)

	if r.Start < 0 {
		n := p.win.Len()
		maxRange, _ := p.cache.MaxRange()
		moved := min(2*p.pageSize, n-1-maxRange.End)
		if moved < -r.Start {
			return Range{}, fmt.Errorf("%w: page %d at %s, window %d", ErrWindowOverflow, prevNum, r, n)
		}
		if err := p.win.ScrollUp(moved); err != nil {
			return Range{}, err
		}
		p.cache.Shift(moved)
		r = r.Shift(moved)
		p.logger.Debug("window scrolled up", "moved", moved)
	}

	total, err := p.slots.load(ctx, prevNum, p.pageSize, r)
	if err != nil {
		return Range{}, fmt.Errorf("load page %d: %w", prevNum, err)
	}
	if err := p.checkTotal(total); err != nil {
		return Range{}, err
	}

	p.logger.Debug("previous", "page", prevNum, "cache", p.cache.String())
	return p.cache.Span()
}

// Resize redistributes the cached pages under a new page size and returns
// the window span. A smaller size re-partitions the resident slots; a larger
// size collapses the cache into one page and loads it. The window stays
// anchored at its start unless the last page of the dataset is resident.
//
// With nothing cached the new size is simply adopted and the zero Range is
// returned.
func (p *Pager[S]) Resize(ctx context.Context, newSize int) (Range, error) {
	if newSize == p.pageSize {
		return Range{}, ErrSamePageSize
	}
	if err := p.checkPageSize(newSize); err != nil {
		return Range{}, err
	}
	if p.pageSize == 0 || p.cache.Len() == 0 {
		p.setPageSize(newSize)
		return Range{}, nil
	}

	maxPage, _ := p.cache.MaxPage()
	fromStart := !p.hasTotal || maxPage != p.maxPageNum

	if newSize < p.pageSize {
		if err := p.cache.ResizeDown(newSize, p.slots.unload, fromStart); err != nil {
			return Range{}, err
		}
	} else {
		if err := p.cache.ResizeUp(ctx, newSize, p.loadResized, fromStart); err != nil {
			return Range{}, err
		}
	}
	p.setPageSize(newSize)

	p.logger.Debug("resize", "page_size", newSize, "cache", p.cache.String())
	return p.cache.Span()
}

// loadResized recycles ring slots when the collapsed page falls outside the
// ring, then loads it.
func (p *Pager[S]) loadResized(ctx context.Context, pageNum, pageSize int, r Range) error {
	n := p.win.Len()
	switch {
	case r.Start < 0:
		moved := -r.Start
		if err := p.win.ScrollUp(moved); err != nil {
			return err
		}
		p.cache.Shift(moved)
	case r.End >= n:
		moved := r.End - n + 1
		if err := p.win.ScrollDown(moved); err != nil {
			return err
		}
		p.cache.Shift(-moved)
	}

	r, err := p.cache.Get(pageNum)
	if err != nil {
		return err
	}
	total, err := p.slots.load(ctx, pageNum, pageSize, r)
	if err != nil {
		return fmt.Errorf("load page %d: %w", pageNum, err)
	}
	return p.checkTotal(total)
}

// Reset unloads every cached page and adopts a new dataset total.
func (p *Pager[S]) Reset(total int) {
	if span, err := p.cache.Span(); err == nil {
		p.slots.unload(span.Start, span.End)
	}
	p.cache.Clear()
	p.setTotal(total)
	p.logger.Debug("reset", "total", p.total)
}

// HasNext reports whether a page after the highest cached one exists. It is
// true while the total is still unknown.
func (p *Pager[S]) HasNext() bool {
	if !p.hasTotal {
		return true
	}
	maxPage, err := p.cache.MaxPage()
	if err != nil {
		return p.maxPageNum > 0
	}
	return maxPage < p.maxPageNum
}

// HasPrevious reports whether a page before the lowest cached one exists.
func (p *Pager[S]) HasPrevious() bool {
	minPage, err := p.cache.MinPage()
	if err != nil {
		return false
	}
	return minPage > 1
}

// Span returns the slot interval covering every cached page.
func (p *Pager[S]) Span() (Range, error) {
	return p.cache.Span()
}

// Pages returns the lowest and highest cached page numbers.
func (p *Pager[S]) Pages() (minPage, maxPage int, err error) {
	if minPage, err = p.cache.MinPage(); err != nil {
		return 0, 0, err
	}
	maxPage, _ = p.cache.MaxPage()
	return minPage, maxPage, nil
}

// PageRange returns the slot range of a cached page.
func (p *Pager[S]) PageRange(pageNum int) (Range, error) {
	return p.cache.Get(pageNum)
}

// Capacity returns the number of ring slots.
func (p *Pager[S]) Capacity() int {
	return p.win.Len()
}

// Window returns the ring the pager recycles. Callers may read slots but
// must not scroll it.
func (p *Pager[S]) Window() *window.Window[S] {
	return p.win
}

// Slot returns the slot at logical index i.
func (p *Pager[S]) Slot(i int) (S, error) {
	return p.win.Slot(i)
}

// SlotsIn returns the slots of r in logical order.
func (p *Pager[S]) SlotsIn(r Range) ([]S, error) {
	out := make([]S, 0, r.Len())
	for i := r.Start; i <= r.End; i++ {
		s, err := p.win.Slot(i)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
