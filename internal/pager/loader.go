package pager

import (
	"context"

	"github.com/runger/ringlist/internal/pagecache"
	"github.com/runger/ringlist/internal/window"
)

// PageLoader binds the pager to a remote data source and to whatever a slot
// displays.
//
// Load fills one page. It calls next once per item to obtain the slot for
// that item; next reports false once the page's slots are exhausted. Load
// returns the total number of items in the whole dataset.
type PageLoader[S any] interface {
	Load(ctx context.Context, pageNum, pageSize int, next func() (S, bool)) (total int, err error)
	Unload(slot S)
	Show(slot S)
	Hide(slot S)
}

// slotLoader drives a PageLoader over ranges of window slots.
type slotLoader[S any] struct {
	loader PageLoader[S]
	win    *window.Window[S]
	// lastPage reports whether pageNum is the final page of the dataset at
	// the given page size.
	lastPage func(pageNum, pageSize int) bool
}

// load fills r with page pageNum. Slots after the last filled one are hidden
// when the page came back short or is the final page.
func (l *slotLoader[S]) load(ctx context.Context, pageNum, pageSize int, r pagecache.Range) (int, error) {
	idx := r.Start
	next := func() (S, bool) {
		var zero S
		if idx > r.End {
			return zero, false
		}
		s, err := l.win.Slot(idx)
		if err != nil {
			return zero, false
		}
		idx++
		l.loader.Show(s)
		return s, true
	}

	total, err := l.loader.Load(ctx, pageNum, pageSize, next)
	if err != nil {
		return 0, err
	}
	if idx <= r.End || l.lastPage(pageNum, pageSize) {
		l.hide(idx, l.win.Len()-1)
	}
	return total, nil
}

// unload releases every slot in [start, end].
func (l *slotLoader[S]) unload(start, end int) {
	for i := start; i <= end; i++ {
		s, err := l.win.Slot(i)
		if err != nil {
			continue
		}
		l.loader.Show(s)
		l.loader.Unload(s)
	}
}

func (l *slotLoader[S]) hide(start, end int) {
	for i := start; i <= end; i++ {
		s, err := l.win.Slot(i)
		if err != nil {
			continue
		}
		l.loader.Hide(s)
	}
}
