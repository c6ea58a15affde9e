package pager

import "errors"

// Configuration errors.
var (
	ErrNoLoader        = errors.New("pager: page loader cannot be nil")
	ErrInvalidPageSize = errors.New("pager: page size must be positive")
	ErrPageTooLarge    = errors.New("pager: page size does not fit the window")
)

// ErrBoundary matches both navigation-boundary errors. Callers normally
// check HasNext/HasPrevious first, or ignore errors matching ErrBoundary.
var ErrBoundary = errors.New("pager: navigation boundary")

// Navigation-boundary errors.
var (
	ErrAtFirstPage = &boundaryError{msg: "pager: already on first page"}
	ErrAtLastPage  = &boundaryError{msg: "pager: already on last page"}
)

// Integrity errors. The pager state is not reconciled after one of these;
// callers usually Reset.
var (
	ErrTotalChanged   = errors.New("pager: dataset total changed between loads")
	ErrUninitialized  = errors.New("pager: not initialized")
	ErrSamePageSize   = errors.New("pager: page size unchanged")
	ErrWindowOverflow = errors.New("pager: page range does not fit the window")
)

// Errors for operations that need an empty cache or a valid page.
var (
	ErrPagesCached    = errors.New("pager: pages cached, reset first")
	ErrPageOutOfRange = errors.New("pager: page number out of range")
)

type boundaryError struct {
	msg string
}

func (e *boundaryError) Error() string { return e.msg }

func (e *boundaryError) Is(target error) bool { return target == ErrBoundary }
