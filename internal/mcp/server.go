package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/userindex/internal/daemon"
	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/store"
	"github.com/Aman-CERP/userindex/internal/telemetry"
	"github.com/Aman-CERP/userindex/pkg/version"
)

const serverName = "userindex"

// Server is the MCP server. It serves the same operations as the daemon,
// through the same RequestHandler.
type Server struct {
	mcp     *mcp.Server
	handler daemon.RequestHandler
	logger  *slog.Logger

	metrics *telemetry.QueryMetrics

	mu sync.RWMutex
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var toolInfos = []ToolInfo{
	{
		Name:        ToolSearchUsers,
		Description: "Search users by free text. Matches first or last name by substring and email or SSN exactly, best match first.",
	},
	{
		Name:        ToolGetUser,
		Description: "Get one user by id.",
	},
	{
		Name:        ToolGetUserByEmail,
		Description: "Get one user by email address (case-insensitive).",
	},
	{
		Name:        ToolLoadUsers,
		Description: "Reload all users from the configured source. Replaces the whole collection; a failed load keeps the previous users.",
	},
	{
		Name:        ToolIndexStatus,
		Description: "Report the loaded user count, index backend, last load and cache statistics.",
	},
}

// NewServer creates a new MCP server over handler.
func NewServer(handler daemon.RequestHandler) (*Server, error) {
	if handler == nil {
		return nil, errors.New("request handler is required")
	}

	s := &Server{
		handler: handler,
		logger:  slog.Default(),
	}
	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version.Version,
		},
		nil,
	)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// SetMetrics enables the query_metrics resource.
func (s *Server) SetMetrics(m *telemetry.QueryMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := s.metrics == nil
	s.metrics = m
	if m != nil && first {
		s.registerQueryMetricsResource()
	}
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return serverName, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(toolInfos))
	copy(out, toolInfos)
	return out
}

// CallTool invokes a tool by name with JSON-shaped arguments, returning the
// tool's structured output.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearchUsers:
		var in SearchUsersInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.searchUsers(ctx, in)
	case ToolGetUser:
		var in GetUserInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.getUser(ctx, in)
	case ToolGetUserByEmail:
		var in GetUserByEmailInput
		if err := decodeArgs(args, &in); err != nil {
			return nil, err
		}
		return s.getUserByEmail(ctx, in)
	case ToolLoadUsers:
		return s.loadUsers(ctx)
	case ToolIndexStatus:
		return s.indexStatus(), nil
	default:
		return nil, NewMethodNotFoundError(name)
	}
}

func decodeArgs(args map[string]any, dst any) error {
	if len(args) == 0 {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return NewInvalidParamsError("arguments are not valid JSON")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewInvalidParamsError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

func (s *Server) searchUsers(ctx context.Context, in SearchUsersInput) (*daemon.SearchResult, error) {
	params := daemon.SearchParams{Query: in.Query, Limit: in.Limit}
	if err := params.Validate(); err != nil {
		return nil, NewInvalidParamsError("query cannot be empty or whitespace only")
	}

	requestID := uuid.NewString()
	start := time.Now()
	result, err := s.handler.Search(ctx, params)
	if err != nil {
		s.logger.Warn("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			apperrors.LogAttr(err))
		return nil, MapError(err)
	}
	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Int("limit", params.Limit),
		slog.Int("result_count", result.Count),
		slog.Duration("duration", time.Since(start)))
	return result, nil
}

func (s *Server) getUser(ctx context.Context, in GetUserInput) (*store.User, error) {
	params := daemon.GetUserParams{ID: in.ID}
	if err := params.Validate(); err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}
	u, err := s.handler.GetUser(ctx, params)
	if err != nil {
		return nil, MapError(err)
	}
	return u, nil
}

func (s *Server) getUserByEmail(ctx context.Context, in GetUserByEmailInput) (*store.User, error) {
	params := daemon.GetUserByEmailParams{Email: in.Email}
	if err := params.Validate(); err != nil {
		return nil, NewInvalidParamsError(err.Error())
	}
	u, err := s.handler.GetUserByEmail(ctx, params)
	if err != nil {
		return nil, MapError(err)
	}
	return u, nil
}

func (s *Server) loadUsers(ctx context.Context) (*LoadUsersOutput, error) {
	requestID := uuid.NewString()
	s.logger.Info("mcp_load_started", slog.String("request_id", requestID))

	result, err := s.handler.Ingest(ctx)
	if err != nil {
		s.logger.Warn("mcp_load_failed",
			slog.String("request_id", requestID),
			apperrors.LogAttr(err))
		return nil, MapError(err)
	}
	out := toLoadOutput(result)
	s.logger.Info("mcp_load_completed",
		slog.String("request_id", requestID),
		slog.Int("loaded", out.Loaded),
		slog.Int("skipped", out.Skipped))
	return &out, nil
}

func (s *Server) indexStatus() *IndexStatusOutput {
	st := s.handler.Status()
	out := &IndexStatusOutput{
		Source:     st.Source,
		Backend:    st.Backend,
		Users:      st.Users,
		Generation: st.Generation,
		Ingestion: IngestionStatus{
			Running:   st.Ingestion.Running,
			Stage:     st.Ingestion.Stage,
			Runs:      st.Ingestion.Runs,
			Failures:  st.Ingestion.Failures,
			LastRunAt: formatTime(st.Ingestion.LastRunAt),
			LastError: st.Ingestion.LastError,
		},
		Cache: CacheStatus{
			Entries: st.Cache.SearchEntries + st.Cache.ByIDEntries + st.Cache.ByEmailEntries,
			Hits:    st.Cache.Hits,
			Misses:  st.Cache.Misses,
			HitRate: st.Cache.HitRate(),
		},
		Watching: st.Watching,
	}
	out.CommittedAt = formatTime(st.CommittedAt)
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolSearchUsers, Description: toolInfos[0].Description}, s.mcpSearchUsersHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolGetUser, Description: toolInfos[1].Description}, s.mcpGetUserHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolGetUserByEmail, Description: toolInfos[2].Description}, s.mcpGetUserByEmailHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolLoadUsers, Description: toolInfos[3].Description}, s.mcpLoadUsersHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: ToolIndexStatus, Description: toolInfos[4].Description}, s.mcpIndexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(toolInfos)))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func (s *Server) mcpSearchUsersHandler(ctx context.Context, _ *mcp.CallToolRequest, in SearchUsersInput) (
	*mcp.CallToolResult,
	*daemon.SearchResult,
	error,
) {
	result, err := s.searchUsers(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return textResult(FormatSearchResults(result.Query, result.Users)), result, nil
}

func (s *Server) mcpGetUserHandler(ctx context.Context, _ *mcp.CallToolRequest, in GetUserInput) (
	*mcp.CallToolResult,
	*store.User,
	error,
) {
	u, err := s.getUser(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return textResult(FormatUser(u)), u, nil
}

func (s *Server) mcpGetUserByEmailHandler(ctx context.Context, _ *mcp.CallToolRequest, in GetUserByEmailInput) (
	*mcp.CallToolResult,
	*store.User,
	error,
) {
	u, err := s.getUserByEmail(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return textResult(FormatUser(u)), u, nil
}

func (s *Server) mcpLoadUsersHandler(ctx context.Context, _ *mcp.CallToolRequest, _ LoadUsersInput) (
	*mcp.CallToolResult,
	*LoadUsersOutput,
	error,
) {
	out, err := s.loadUsers(ctx)
	if err != nil {
		return nil, nil, err
	}
	return textResult(FormatLoadResult(*out)), out, nil
}

func (s *Server) mcpIndexStatusHandler(_ context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	return nil, s.indexStatus(), nil
}

// Serve runs the server on transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch strings.ToLower(transport) {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_failed", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}
