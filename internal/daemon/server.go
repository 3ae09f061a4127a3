package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Aman-CERP/userindex/internal/store"
)

// RequestHandler serves the user index operations behind the RPC methods.
type RequestHandler interface {
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)
	GetUser(ctx context.Context, params GetUserParams) (*store.User, error)
	GetUserByEmail(ctx context.Context, params GetUserByEmailParams) (*store.User, error)
	Ingest(ctx context.Context) (*IngestResult, error)
	Status() StatusResult
}

// Server listens on a Unix socket and handles one RPC request per connection.
type Server struct {
	socketPath string
	timeout    time.Duration
	listener   net.Listener
	handler    RequestHandler
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for cfg.SocketPath.
func NewServer(cfg Config) (*Server, error) {
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Server{
		socketPath: cfg.SocketPath,
		timeout:    timeout,
	}, nil
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	// A stale socket from a crashed daemon would make Listen fail.
	_ = os.Remove(s.socketPath)
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		if listener.Addr().Network() == "unix" {
			_ = os.Remove(s.socketPath)
		}
	}()

	slog.Info("daemon_listening", slog.String("socket", s.socketPath))

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
			return
		}
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			slog.Error("daemon_accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

// handleConnection processes a single client connection. The read and the
// write each get the connection timeout; the handler itself is bounded by
// ctx so a long ingestion is not cut off mid-commit.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	if err := conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		slog.Warn("daemon_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	start := time.Now()
	resp := s.handleRequest(ctx, req)
	level := slog.LevelDebug
	if resp.Error != nil {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "daemon_request",
		slog.String("id", req.ID),
		slog.String("method", req.Method),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("ok", resp.Error == nil))

	_ = conn.SetWriteDeadline(time.Now().Add(s.timeout))
	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "jsonrpc must be 2.0")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())
	}

	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	switch req.Method {
	case MethodSearch:
		var params SearchParams
		if resp, ok := decodeParams(req, &params, params.Validate); !ok {
			return resp
		}
		result, err := s.handler.Search(ctx, params)
		return respond(req.ID, result, err)

	case MethodGetUser:
		var params GetUserParams
		if resp, ok := decodeParams(req, &params, params.Validate); !ok {
			return resp
		}
		result, err := s.handler.GetUser(ctx, params)
		return respond(req.ID, result, err)

	case MethodGetUserByEmail:
		var params GetUserByEmailParams
		if resp, ok := decodeParams(req, &params, params.Validate); !ok {
			return resp
		}
		result, err := s.handler.GetUserByEmail(ctx, params)
		return respond(req.ID, result, err)

	case MethodIngest:
		result, err := s.handler.Ingest(ctx)
		return respond(req.ID, result, err)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// respond turns a handler result into a response.
func respond(id string, result any, err error) Response {
	if err != nil {
		return NewAppErrorResponse(id, err)
	}
	return NewSuccessResponse(id, result)
}

// decodeParams re-decodes the generic params into dst and validates them.
func decodeParams[T any](req Request, dst *T, validate func() error) (Response, bool) {
	data, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params"), false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
	}
	if err := validate(); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error()), false
	}
	return Response{}, true
}

// getStatus returns the current server status.
func (s *Server) getStatus() StatusResult {
	var status StatusResult
	if s.handler != nil {
		status = s.handler.Status()
	}

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status.Running = true
	status.PID = os.Getpid()
	status.Uptime = time.Since(started).Round(time.Second).String()
	return status
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
