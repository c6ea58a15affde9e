// Package storage provides the SQLite item store that backs the page
// service. Items are append-only text records addressed by insertion order;
// pages are computed over the items that match a filter.
package storage

import (
	"context"
	"errors"
)

// ErrInvalidPage is returned when a page number or page size is not positive.
var ErrInvalidPage = errors.New("page number and page size must be positive")

// Store defines the interface for all storage operations.
// The page server is the single writer.
type Store interface {
	// AppendItems stores texts in order and returns the created items.
	AppendItems(ctx context.Context, texts []string) ([]Item, error)
	// CountItems counts the items matching f.
	CountItems(ctx context.Context, f Filter) (int, error)
	// ListItems lists matching items in insertion order.
	ListItems(ctx context.Context, q ItemQuery) ([]Item, error)
	// FetchPage returns one page of matching items together with the
	// matching total, read from a single snapshot.
	FetchPage(ctx context.Context, f Filter, pageNum, pageSize int) (*Page, error)
	// DeleteItems removes items by item ID and returns how many were removed.
	DeleteItems(ctx context.Context, itemIDs []string) (int64, error)

	// Lifecycle
	Close() error
}

// Item is a stored record.
type Item struct {
	ID          int64
	ItemID      string
	Text        string
	CreatedAtMs int64
}

// ItemQuery defines parameters for listing items.
type ItemQuery struct {
	Filter Filter
	Limit  int // 0 = no limit
	Offset int // Skip this many matching items
}

// Page is one page of items and the size of the whole filtered dataset.
type Page struct {
	Items []Item
	Total int
}
