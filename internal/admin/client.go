package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// defaultTimeout bounds a Call when the caller's context has no deadline.
const defaultTimeout = 10 * time.Second

// Client is a thin JSON-RPC-over-UDS client for the five operator commands.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient builds a Client bound to socketPath. timeout of zero uses
// defaultTimeout.
func NewClient(socketPath string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{socketPath: socketPath, timeout: timeout}
}

// Call sends one request and waits for its response.
func (c *Client) Call(ctx context.Context, method string) (string, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if err := json.NewEncoder(conn).Encode(Request{Method: method}); err != nil {
		return "", fmt.Errorf("send %s: %w", method, err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read response to %s: %w", method, err)
		}
		return "", fmt.Errorf("%s: connection closed without response", method)
	}

	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return "", fmt.Errorf("parse response to %s: %w", method, err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%s: %s", method, resp.Error)
	}
	return resp.Result, nil
}

func (c *Client) StartCollect(ctx context.Context) (string, error) { return c.Call(ctx, MethodStartCollect) }
func (c *Client) StopCollect(ctx context.Context) (string, error)  { return c.Call(ctx, MethodStopCollect) }
func (c *Client) Status(ctx context.Context) (string, error)       { return c.Call(ctx, MethodStatus) }
func (c *Client) Pull(ctx context.Context) (string, error)         { return c.Call(ctx, MethodPull) }
func (c *Client) Shutdown(ctx context.Context) (string, error)     { return c.Call(ctx, MethodShutdown) }
