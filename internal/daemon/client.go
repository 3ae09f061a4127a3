package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/store"
)

// Client calls the daemon. Each call uses its own connection.
type Client struct {
	socketPath    string
	timeout       time.Duration
	ingestTimeout time.Duration
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.IngestTimeout <= 0 {
		cfg.IngestTimeout = DefaultIngestTimeout
	}
	return &Client{
		socketPath:    cfg.SocketPath,
		timeout:       cfg.Timeout,
		ingestTimeout: cfg.IngestTimeout,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var result PingResult
	if err := c.call(ctx, c.timeout, MethodPing, nil, &result); err != nil {
		return err
	}
	if !result.Pong {
		return fmt.Errorf("ping failed: no pong")
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, c.timeout, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Search runs a free-text search. limit 0 selects the server default.
func (c *Client) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	params := SearchParams{Query: query, Limit: limit}
	if err := params.Validate(); err != nil {
		return nil, apperrors.New(apperrors.ErrCodeQueryEmpty, err.Error(), nil)
	}
	var result SearchResult
	if err := c.call(ctx, c.timeout, MethodSearch, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetUser looks a user up by id.
func (c *Client) GetUser(ctx context.Context, id int64) (*store.User, error) {
	params := GetUserParams{ID: id}
	if err := params.Validate(); err != nil {
		return nil, apperrors.ValidationError(err.Error(), nil)
	}
	var u store.User
	if err := c.call(ctx, c.timeout, MethodGetUser, params, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail looks a user up by email.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	params := GetUserByEmailParams{Email: email}
	if err := params.Validate(); err != nil {
		return nil, apperrors.ValidationError(err.Error(), nil)
	}
	var u store.User
	if err := c.call(ctx, c.timeout, MethodGetUserByEmail, params, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Ingest triggers an ingestion in the daemon and waits for it.
func (c *Client) Ingest(ctx context.Context) (*IngestResult, error) {
	var result IngestResult
	if err := c.call(ctx, c.ingestTimeout, MethodIngest, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// call performs one request/response exchange. An RPC error carrying an
// application code is returned as that *apperrors.AppError.
func (c *Client) call(ctx context.Context, timeout time.Duration, method string, params, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	// Unblock the exchange if ctx is cancelled before the deadline.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp struct {
		JSONRPC string          `json:"jsonrpc"`
		Result  json.RawMessage `json:"result"`
		Error   *Error          `json:"error"`
		ID      string          `json:"id"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to receive response: %w", err)
	}

	if resp.Error != nil {
		if ae := resp.Error.AppError(); ae != nil {
			return ae
		}
		return fmt.Errorf("%s failed: %w", method, resp.Error)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
