package picker

import (
	"context"
	"fmt"
	"time"

	"github.com/runger/ringlist/internal/daemon"
)

// DefaultFetchTimeout bounds a single page request, covering connection
// establishment and the RPC itself.
const DefaultFetchTimeout = 200 * time.Millisecond

// RemoteProvider implements Provider over the page server's FetchPage RPC.
type RemoteProvider struct {
	client  *daemon.Client
	timeout time.Duration
}

// Compile-time check that RemoteProvider implements Provider.
var _ Provider = (*RemoteProvider)(nil)

// NewRemoteProvider creates a provider for the page server at socketPath.
// A non-positive timeout selects DefaultFetchTimeout.
func NewRemoteProvider(socketPath string, timeout time.Duration) (*RemoteProvider, error) {
	client, err := daemon.NewClient(socketPath)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &RemoteProvider{client: client, timeout: timeout}, nil
}

// FetchPage calls the page server and returns sanitized results.
func (p *RemoteProvider) FetchPage(ctx context.Context, query string, pageNum, pageSize int) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.client.FetchPage(ctx, query, pageNum, pageSize)
	if err != nil {
		return Page{}, fmt.Errorf("remote provider: %w", err)
	}

	items := make([]Item, 0, len(resp.Items))
	for _, it := range resp.Items {
		items = append(items, Item{ID: it.ID, Text: sanitizeText(it.Text)})
	}
	return Page{Items: items, Total: resp.Total}, nil
}

// Close releases the connection to the page server.
func (p *RemoteProvider) Close() error {
	return p.client.Close()
}
