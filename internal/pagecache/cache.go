// Package pagecache maps resident page numbers to the slot ranges that hold
// their data.
//
// The cache always describes a single contiguous run of pages, so consumers
// can treat the resident data as one interval [MinRange.Start, MaxRange.End].
// Its size is bounded; inserting at one edge of a full cache evicts the other.
package pagecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	// DefaultMaxSize is the page bound for page sizes below the large-page threshold.
	DefaultMaxSize = 3
	// DefaultLargePageThreshold is the page size from which the large-page bound applies.
	DefaultLargePageThreshold = 67
	// DefaultLargePageMaxSize is the page bound once pages are large.
	DefaultLargePageMaxSize = 2
)

var (
	ErrNoClearFunc  = errors.New("pagecache: clear range function cannot be nil")
	ErrEmpty        = errors.New("pagecache: no pages cached")
	ErrPageNotFound = errors.New("pagecache: page not cached")
	ErrInteriorPage = errors.New("pagecache: removing an interior page is not implemented")
	ErrInvalidSize  = errors.New("pagecache: page size must be positive")
)

// Range is an inclusive span of slot indexes.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of slots in the range.
func (r Range) Len() int {
	return r.End - r.Start + 1
}

// Shift returns the range moved by offset slots.
func (r Range) Shift(offset int) Range {
	return Range{Start: r.Start + offset, End: r.End + offset}
}

func (r Range) String() string {
	return fmt.Sprintf("{%d,%d}", r.Start, r.End)
}

// ClearFunc releases the slots in [start, end]. Empty spans (start > end)
// are never passed.
type ClearFunc func(start, end int)

// LoadFunc fills r with page pageNum at the given page size.
type LoadFunc func(ctx context.Context, pageNum, pageSize int, r Range) error

// Option configures a Cache.
type Option func(*Cache)

// WithMaxSize sets the page bound used below the large-page threshold.
func WithMaxSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.smallMax = n
			c.maxSize = n
		}
	}
}

// WithLargePage sets the threshold page size and the bound applied at or above it.
func WithLargePage(threshold, maxSize int) Option {
	return func(c *Cache) {
		if threshold > 0 {
			c.largeThreshold = threshold
		}
		if maxSize > 0 {
			c.largeMax = maxSize
		}
	}
}

// WithLogger sets the logger used for consistency warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cache is a bounded, contiguous page-number to slot-range map.
// It is not safe for concurrent use.
type Cache struct {
	ranges  map[int]Range
	minPage int
	maxPage int

	maxSize        int
	smallMax       int
	largeMax       int
	largeThreshold int

	clear  ClearFunc
	logger *slog.Logger
}

// New creates an empty cache. clear is invoked for every range the cache evicts.
func New(clear ClearFunc, opts ...Option) (*Cache, error) {
	if clear == nil {
		return nil, ErrNoClearFunc
	}
	c := &Cache{
		ranges:         make(map[int]Range),
		maxSize:        DefaultMaxSize,
		smallMax:       DefaultMaxSize,
		largeMax:       DefaultLargePageMaxSize,
		largeThreshold: DefaultLargePageThreshold,
		clear:          clear,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// MaxSizeFor returns the page bound that applies to pages of the given size.
func (c *Cache) MaxSizeFor(pageSize int) int {
	if pageSize < c.largeThreshold {
		return c.smallMax
	}
	return c.largeMax
}

// SetPageSize adopts the page bound for pageSize. Pages already cached are
// not trimmed; ResizeDown and ResizeUp do that.
func (c *Cache) SetPageSize(pageSize int) {
	c.maxSize = c.MaxSizeFor(pageSize)
}

// MaxSize returns the current page bound.
func (c *Cache) MaxSize() int {
	return c.maxSize
}

// Len returns the number of cached pages.
func (c *Cache) Len() int {
	return len(c.ranges)
}

// Get returns the range of a cached page.
func (c *Cache) Get(pageNum int) (Range, error) {
	r, ok := c.ranges[pageNum]
	if !ok {
		return Range{}, fmt.Errorf("%w: %d", ErrPageNotFound, pageNum)
	}
	return r, nil
}

// Set records r as the range of pageNum.
//
// A page that is already cached is left untouched. A page that is not
// adjacent to the cached run clears the whole run first. When the cache is
// full, the edge page farther from pageNum is evicted.
func (c *Cache) Set(pageNum int, r Range) {
	if _, ok := c.ranges[pageNum]; ok {
		c.logger.Warn("page already cached", "page", pageNum, "range", r.String())
		return
	}

	if len(c.ranges) > 0 && (pageNum > c.maxPage+1 || pageNum < c.minPage-1) {
		span := c.span()
		c.clear(span.Start, span.End)
		c.reset()
	}

	for len(c.ranges) >= c.maxSize {
		switch {
		case pageNum < c.minPage:
			c.evict(c.maxPage)
		case pageNum > c.maxPage:
			c.evict(c.minPage)
		default:
			// Unreachable: pageNum is adjacent and not cached.
			c.evict(c.minPage)
		}
	}

	if len(c.ranges) == 0 || pageNum < c.minPage {
		c.minPage = pageNum
	}
	if len(c.ranges) == 0 || pageNum > c.maxPage {
		c.maxPage = pageNum
	}
	c.ranges[pageNum] = r
}

// Remove evicts an edge page, releasing its slots. Removing a page that is
// not cached is a no-op.
func (c *Cache) Remove(pageNum int) error {
	if len(c.ranges) == 0 {
		return ErrEmpty
	}
	if _, ok := c.ranges[pageNum]; !ok {
		return nil
	}
	if pageNum != c.minPage && pageNum != c.maxPage {
		return fmt.Errorf("%w: %d in (%d, %d)", ErrInteriorPage, pageNum, c.minPage, c.maxPage)
	}
	c.evict(pageNum)
	return nil
}

// evict removes an edge page that is known to be cached.
func (c *Cache) evict(pageNum int) {
	r := c.ranges[pageNum]
	c.clear(r.Start, r.End)
	delete(c.ranges, pageNum)

	switch {
	case len(c.ranges) == 0:
		c.minPage, c.maxPage = 0, 0
	case pageNum == c.minPage:
		c.minPage++
	case pageNum == c.maxPage:
		c.maxPage--
	}
}

// Shift moves every cached range by offset slots.
func (c *Cache) Shift(offset int) {
	if offset == 0 {
		return
	}
	for p, r := range c.ranges {
		c.ranges[p] = r.Shift(offset)
	}
}

// Clear drops every page without releasing slots.
func (c *Cache) Clear() {
	c.reset()
}

func (c *Cache) reset() {
	clear(c.ranges)
	c.minPage, c.maxPage = 0, 0
}

// MinPage returns the lowest cached page number.
func (c *Cache) MinPage() (int, error) {
	if len(c.ranges) == 0 {
		return 0, ErrEmpty
	}
	return c.minPage, nil
}

// MaxPage returns the highest cached page number.
func (c *Cache) MaxPage() (int, error) {
	if len(c.ranges) == 0 {
		return 0, ErrEmpty
	}
	return c.maxPage, nil
}

// MinRange returns the range of the lowest cached page.
func (c *Cache) MinRange() (Range, error) {
	if len(c.ranges) == 0 {
		return Range{}, ErrEmpty
	}
	return c.ranges[c.minPage], nil
}

// MaxRange returns the range of the highest cached page.
func (c *Cache) MaxRange() (Range, error) {
	if len(c.ranges) == 0 {
		return Range{}, ErrEmpty
	}
	return c.ranges[c.maxPage], nil
}

// Span returns the interval covering every cached page.
func (c *Cache) Span() (Range, error) {
	if len(c.ranges) == 0 {
		return Range{}, ErrEmpty
	}
	return c.span(), nil
}

func (c *Cache) span() Range {
	return Range{Start: c.ranges[c.minPage].Start, End: c.ranges[c.maxPage].End}
}

// ResizeDown re-partitions the cached pages into contiguous ranges of the
// smaller newSize. With fromStart the first page keeps its start and the
// slots past the new end are passed to unload; otherwise the last page keeps
// its end and the slots before the new start are unloaded.
func (c *Cache) ResizeDown(newSize int, unload ClearFunc, fromStart bool) error {
	if newSize <= 0 {
		return ErrInvalidSize
	}
	if len(c.ranges) == 0 {
		return ErrEmpty
	}
	c.maxSize = c.MaxSizeFor(newSize)

	old := c.span()
	if fromStart {
		s := old.Start
		for p := c.minPage; p <= c.maxPage; p++ {
			c.ranges[p] = Range{Start: s, End: s + newSize - 1}
			s += newSize
		}
		if end := c.ranges[c.maxPage].End; end < old.End && unload != nil {
			unload(end+1, old.End)
		}
	} else {
		e := old.End
		for p := c.maxPage; p >= c.minPage; p-- {
			c.ranges[p] = Range{Start: e - newSize + 1, End: e}
			e -= newSize
		}
		if start := c.ranges[c.minPage].Start; start > old.Start && unload != nil {
			unload(old.Start, start-1)
		}
	}

	for len(c.ranges) > c.maxSize {
		if fromStart {
			c.evict(c.maxPage)
		} else {
			c.evict(c.minPage)
		}
	}
	return nil
}

// ResizeUp collapses the cache into a single page of the larger newSize.
// With fromStart the min page is kept, anchored at the old span start;
// otherwise the max page is kept, anchored at the old span end. Slots of the
// old span outside the new range are released through the clear function.
// load is called exactly once for the new range and its error is returned.
//
// load may shift the cache (for example after recycling window slots); the
// range it receives is the one registered before the call.
func (c *Cache) ResizeUp(ctx context.Context, newSize int, load LoadFunc, fromStart bool) error {
	if newSize <= 0 {
		return ErrInvalidSize
	}
	if len(c.ranges) == 0 {
		return ErrEmpty
	}
	c.maxSize = c.MaxSizeFor(newSize)

	old := c.span()
	var (
		pageNum int
		r       Range
	)
	if fromStart {
		pageNum = c.minPage
		r = Range{Start: old.Start, End: old.Start + newSize - 1}
	} else {
		pageNum = c.maxPage
		r = Range{Start: old.End - newSize + 1, End: old.End}
	}
	c.reset()

	if old.Start < r.Start {
		c.clear(old.Start, r.Start-1)
	}
	if old.End > r.End {
		c.clear(r.End+1, old.End)
	}

	c.Set(pageNum, r)
	return load(ctx, pageNum, newSize, r)
}

// String renders the cached pages in page order.
func (c *Cache) String() string {
	if len(c.ranges) == 0 {
		return "[]"
	}
	var b strings.Builder
	b.WriteByte('[')
	for p := c.minPage; p <= c.maxPage; p++ {
		if p > c.minPage {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d:%s", p, c.ranges[p])
	}
	b.WriteByte(']')
	return b.String()
}
