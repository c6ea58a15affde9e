package picker

import (
	"context"
	"fmt"

	"github.com/runger/ringlist/internal/storage"
)

// StoreProvider implements Provider directly over an item store, without
// a page server in between.
type StoreProvider struct {
	store storage.Store
}

// Compile-time check that StoreProvider implements Provider.
var _ Provider = (*StoreProvider)(nil)

// NewStoreProvider creates a provider reading from store.
func NewStoreProvider(store storage.Store) *StoreProvider {
	return &StoreProvider{store: store}
}

// FetchPage reads one page of the items matching query.
func (p *StoreProvider) FetchPage(ctx context.Context, query string, pageNum, pageSize int) (Page, error) {
	page, err := p.store.FetchPage(ctx, storage.ParseFilter(query), pageNum, pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("store provider: %w", err)
	}

	items := make([]Item, 0, len(page.Items))
	for _, it := range page.Items {
		items = append(items, Item{ID: it.ItemID, Text: sanitizeText(it.Text)})
	}
	return Page{Items: items, Total: page.Total}, nil
}
