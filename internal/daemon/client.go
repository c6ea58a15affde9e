package daemon

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls the page server over its Unix socket.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient creates a client for the server at socketPath. The connection
// is established lazily on the first call.
func NewClient(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("page client: dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

// FetchPage requests one page of the items matching query.
func (c *Client) FetchPage(ctx context.Context, query string, pageNum, pageSize int) (PageResponse, error) {
	in, err := PageRequest{Query: query, PageNum: pageNum, PageSize: pageSize}.Encode()
	if err != nil {
		return PageResponse{}, fmt.Errorf("page client: encode: %w", err)
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FetchPageMethod, in, out); err != nil {
		return PageResponse{}, fmt.Errorf("page client: rpc: %w", err)
	}
	return DecodePageResponse(out)
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
