package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/lucid/internal/retrieval"
)

// #region client-struct
// Client talks to a remote lucid server. It satisfies generation.Backend and
// retrieval.Backend, and can run whole reflection turns remotely.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// Dial creates a client for addr. The connection is established lazily by
// grpc on first call.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client over an existing connection.
// Used for testing and for sharing one connection.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the connection if this client owns it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region complete
// Complete asks the remote backend for one completion.
func (c *Client) Complete(ctx context.Context, prompt string, temperature float64, maxTokens int) (string, error) {
	req, err := newStruct(map[string]any{
		"prompt":      prompt,
		"temperature": temperature,
		"max_tokens":  maxTokens,
	})
	if err != nil {
		return "", err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, completeMethod, req, resp); err != nil {
		return "", fmt.Errorf("complete rpc: %w", err)
	}
	return str(resp.AsMap(), "text"), nil
}

// #endregion complete

// #region search
// Search queries the remote corpus.
func (c *Client) Search(ctx context.Context, query string, k int) ([]retrieval.Hit, error) {
	req, err := newStruct(map[string]any{"query": query, "k": k})
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, searchMethod, req, resp); err != nil {
		return nil, fmt.Errorf("search rpc: %w", err)
	}
	return decodeHits(resp), nil
}

// #endregion search

// #region reflect
// Reflect runs one reflection turn on the remote server. An empty sessionID
// asks the server to start a session.
func (c *Client) Reflect(ctx context.Context, sessionID, message string) (Reply, error) {
	req, err := newStruct(map[string]any{"session_id": sessionID, "message": message})
	if err != nil {
		return Reply{}, err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, reflectMethod, req, resp); err != nil {
		return Reply{}, fmt.Errorf("reflect rpc: %w", err)
	}
	m := resp.AsMap()
	meta, _ := m["metadata"].(map[string]any)
	return Reply{
		Response:  str(m, "response"),
		SessionID: str(m, "session_id"),
		Metadata:  meta,
	}, nil
}

// #endregion reflect
