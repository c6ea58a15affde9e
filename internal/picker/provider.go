package picker

import "context"

// Provider is the interface for data sources that supply pages to the
// browser. Implementations might call the page server or read the store
// directly.
type Provider interface {
	FetchPage(ctx context.Context, query string, pageNum, pageSize int) (Page, error)
}

// Item is one displayable record.
type Item struct {
	ID   string
	Text string
}

// Page carries one page of items and the size of the filtered dataset.
type Page struct {
	Items []Item
	Total int
}
