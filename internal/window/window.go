// Package window provides a fixed-capacity ring of reusable display slots.
//
// Slots are created once by Init and never freed. Scrolling moves a
// contiguous block of slots from one logical end of the ring to the other,
// which exposes fresh logical positions at the leading edge while recycling
// the trailing ones.
package window

import (
	"errors"
	"fmt"
)

var (
	// ErrNoCapacity is returned when a window is constructed with capacity <= 0.
	ErrNoCapacity = errors.New("window: capacity must be positive")
	// ErrNoSlotManager is returned when a window is constructed without a slot manager.
	ErrNoSlotManager = errors.New("window: slot manager cannot be nil")
	// ErrInitialized is returned by a second call to Init.
	ErrInitialized = errors.New("window: already initialized")
	// ErrNotInitialized is returned when slots are accessed before Init.
	ErrNotInitialized = errors.New("window: not initialized")
	// ErrOutOfRange is returned for slot indexes or move sizes outside the window.
	ErrOutOfRange = errors.New("window: index out of range")
)

// SlotManager creates slots and observes their relocation.
// MoveToTop and MoveToBottom receive half-open logical ranges [start, end)
// as they were before the move.
type SlotManager[S any] interface {
	NewSlot() S
	AddSlot(slot S)
	MoveToTop(start, end int)
	MoveToBottom(start, end int)
}

// SlotFunc adapts a factory function into a SlotManager with no-op hooks.
type SlotFunc[S any] func() S

func (f SlotFunc[S]) NewSlot() S          { return f() }
func (SlotFunc[S]) AddSlot(S)             {}
func (SlotFunc[S]) MoveToTop(int, int)    {}
func (SlotFunc[S]) MoveToBottom(int, int) {}

// Window is a fixed ring of slots addressed by logical index.
// It is not safe for concurrent use.
type Window[S any] struct {
	slots []S
	head  int // physical index of logical slot 0
	size  int
	mgr   SlotManager[S]
}

// New creates a window of the given capacity. Slots are not created until Init.
func New[S any](capacity int, mgr SlotManager[S]) (*Window[S], error) {
	if capacity <= 0 {
		return nil, ErrNoCapacity
	}
	if mgr == nil {
		return nil, ErrNoSlotManager
	}
	return &Window[S]{size: capacity, mgr: mgr}, nil
}

// Init creates every slot through the slot manager.
func (w *Window[S]) Init() error {
	if w.slots != nil {
		return ErrInitialized
	}
	slots := make([]S, w.size)
	for i := range slots {
		slots[i] = w.mgr.NewSlot()
		w.mgr.AddSlot(slots[i])
	}
	w.slots = slots
	return nil
}

// Len returns the fixed capacity.
func (w *Window[S]) Len() int {
	return w.size
}

// Initialized reports whether Init has run.
func (w *Window[S]) Initialized() bool {
	return w.slots != nil
}

// Slot returns the slot at logical index i.
func (w *Window[S]) Slot(i int) (S, error) {
	var zero S
	if w.slots == nil {
		return zero, ErrNotInitialized
	}
	if i < 0 || i >= w.size {
		return zero, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, w.size)
	}
	return w.slots[w.physical(i)], nil
}

// Slots returns the slots in logical order.
func (w *Window[S]) Slots() []S {
	if w.slots == nil {
		return nil
	}
	out := make([]S, w.size)
	for i := range out {
		out[i] = w.slots[w.physical(i)]
	}
	return out
}

// ScrollDown moves logical slots [0, n) to the tail. Every range tracked
// against this window must be shifted by -n afterwards.
func (w *Window[S]) ScrollDown(n int) error {
	if err := w.checkMove(n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	w.mgr.MoveToBottom(0, n)
	w.head = (w.head + n) % w.size
	return nil
}

// ScrollUp moves logical slots [N-n, N) to the head. Every range tracked
// against this window must be shifted by +n afterwards.
func (w *Window[S]) ScrollUp(n int) error {
	if err := w.checkMove(n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	w.mgr.MoveToTop(w.size-n, w.size)
	w.head = (w.head - n + w.size) % w.size
	return nil
}

func (w *Window[S]) checkMove(n int) error {
	if w.slots == nil {
		return ErrNotInitialized
	}
	if n < 0 || n > w.size {
		return fmt.Errorf("%w: move size %d not in [0, %d]", ErrOutOfRange, n, w.size)
	}
	return nil
}

func (w *Window[S]) physical(i int) int {
	return (w.head + i) % w.size
}
