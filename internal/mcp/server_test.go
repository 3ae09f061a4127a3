package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/userindex/internal/cache"
	"github.com/Aman-CERP/userindex/internal/daemon"
	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/index"
	"github.com/Aman-CERP/userindex/internal/search"
	"github.com/Aman-CERP/userindex/internal/store"
	"github.com/Aman-CERP/userindex/internal/telemetry"
)

// fakeIngester returns a fixed result or error.
type fakeIngester struct {
	result *index.RunResult
	err    error
}

func (f *fakeIngester) Run(context.Context, index.Reporter) (*index.RunResult, error) {
	return f.result, f.err
}

func (f *fakeIngester) Status() index.RunnerStatus {
	return index.RunnerStatus{Runs: 4, Failures: 1, LastError: "[ERR_505_INGESTION_FAILED] boom"}
}

func (f *fakeIngester) Source() string { return "https://dummyjson.com/users" }

func newTestServer(t *testing.T, ing daemon.Ingester) (*Server, *search.Engine) {
	t.Helper()
	queries := telemetry.NewQueryMetrics()
	engine, err := search.NewEngine(store.NewMemoryStore(), store.NewScanIndexBuilder(),
		cache.New(cache.Config{}, nil), search.DefaultConfig(), search.WithQueryMetrics(queries))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	_, err = engine.Commit(context.Background(), []*store.User{
		{ID: 1, FirstName: "John", LastName: "Smith", Email: "john@x.com", SSN: "111"},
		{ID: 2, FirstName: "Zed", LastName: "Major", Email: "z@x.com", SSN: "222"},
		{ID: 3, FirstName: "Jo", LastName: "Doe", Email: "jo@x.com", SSN: "333"},
	})
	require.NoError(t, err)

	srv, err := NewServer(daemon.NewService(engine, ing))
	require.NoError(t, err)
	srv.SetMetrics(queries)
	return srv, engine
}

func TestNewServer_RequiresHandler(t *testing.T) {
	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestServer_ListTools(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var names []string
	for _, tool := range srv.ListTools() {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description)
	}

	assert.Equal(t, []string{"search_users", "get_user", "get_user_by_email", "load_users", "index_status"}, names)
	name, _ := srv.Info()
	assert.Equal(t, "userindex", name)
}

func TestServer_CallTool_SearchUsers(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	// When: searching for a shared prefix
	out, err := srv.CallTool(context.Background(), ToolSearchUsers, map[string]any{"query": "jo"})

	// Then: matches come back best first, ties by ascending id
	require.NoError(t, err)
	result := out.(*daemon.SearchResult)
	assert.Equal(t, 2, result.Count)
	assert.Equal(t, int64(1), result.Users[0].ID)
	assert.Equal(t, int64(3), result.Users[1].ID)
}

func TestServer_CallTool_SearchUsersHonorsLimit(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	out, err := srv.CallTool(context.Background(), ToolSearchUsers, map[string]any{"query": "jo", "limit": 1})

	require.NoError(t, err)
	assert.Equal(t, 1, out.(*daemon.SearchResult).Count)
}

func TestServer_CallTool_Lookups(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	out, err := srv.CallTool(ctx, ToolGetUser, map[string]any{"id": 2})
	require.NoError(t, err)
	assert.Equal(t, "Zed", out.(*store.User).FirstName)

	out, err = srv.CallTool(ctx, ToolGetUserByEmail, map[string]any{"email": "JO@x.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.(*store.User).ID)
}

func TestServer_CallTool_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name     string
		tool     string
		args     map[string]any
		wantCode int
	}{
		{"unknown tool", "drop_users", nil, ErrCodeMethodNotFound},
		{"missing query", ToolSearchUsers, map[string]any{}, ErrCodeInvalidParams},
		{"blank query", ToolSearchUsers, map[string]any{"query": "   "}, ErrCodeInvalidParams},
		{"query wrong type", ToolSearchUsers, map[string]any{"query": 42}, ErrCodeInvalidParams},
		{"zero id", ToolGetUser, map[string]any{"id": 0}, ErrCodeInvalidParams},
		{"unknown id", ToolGetUser, map[string]any{"id": 9999}, ErrCodeNotFound},
		{"blank email", ToolGetUserByEmail, map[string]any{"email": ""}, ErrCodeInvalidParams},
		{"unknown email", ToolGetUserByEmail, map[string]any{"email": "nobody@x.com"}, ErrCodeNotFound},
		{"load without ingester", ToolLoadUsers, nil, ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := srv.CallTool(context.Background(), tt.tool, tt.args)

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, MapError(err).Code)
		})
	}
}

func TestServer_CallTool_LoadUsers(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeIngester{result: &index.RunResult{
			Loaded: 30, Skipped: 1, Attempts: 2, Duration: 2 * time.Second, Source: "https://dummyjson.com/users",
		}})

		out, err := srv.CallTool(context.Background(), ToolLoadUsers, nil)

		require.NoError(t, err)
		load := out.(*LoadUsersOutput)
		assert.Equal(t, 30, load.Loaded)
		assert.Equal(t, 1, load.Skipped)
		assert.Equal(t, 2, load.Attempts)
		assert.Equal(t, "2s", load.Duration)
	})

	t.Run("in progress", func(t *testing.T) {
		srv, _ := newTestServer(t, &fakeIngester{
			err: apperrors.New(apperrors.ErrCodeIngestionInProgress, "ingestion already running", nil),
		})

		_, err := srv.CallTool(context.Background(), ToolLoadUsers, nil)

		assert.Equal(t, ErrCodeIngestionInProgress, MapError(err).Code)
	})
}

func TestServer_CallTool_IndexStatus(t *testing.T) {
	srv, _ := newTestServer(t, &fakeIngester{})
	ctx := context.Background()

	// Given: one cached lookup
	_, err := srv.CallTool(ctx, ToolGetUser, map[string]any{"id": 1})
	require.NoError(t, err)
	_, err = srv.CallTool(ctx, ToolGetUser, map[string]any{"id": 1})
	require.NoError(t, err)

	// When: reading status
	out, err := srv.CallTool(ctx, ToolIndexStatus, nil)

	// Then: engine, runner and cache state are reported
	require.NoError(t, err)
	status := out.(*IndexStatusOutput)
	assert.Equal(t, 3, status.Users)
	assert.Equal(t, "scan", status.Backend)
	assert.Equal(t, uint64(1), status.Generation)
	assert.NotEmpty(t, status.CommittedAt)
	assert.Equal(t, "https://dummyjson.com/users", status.Source)
	assert.Equal(t, 4, status.Ingestion.Runs)
	assert.Equal(t, 1, status.Ingestion.Failures)
	assert.Equal(t, int64(1), status.Cache.Hits)
	assert.Equal(t, int64(1), status.Cache.Misses)
	assert.InDelta(t, 0.5, status.Cache.HitRate, 0.001)
}

func TestServer_ReadUserResource(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	res, err := srv.readUserResource(ctx, "userindex://users/3")
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	var u store.User
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &u))
	assert.Equal(t, "Jo", u.FirstName)

	_, err = srv.readUserResource(ctx, "userindex://users/404")
	assert.Equal(t, ErrCodeNotFound, MapError(err).Code)

	_, err = srv.readUserResource(ctx, "userindex://users/abc")
	assert.Equal(t, ErrCodeInvalidParams, MapError(err).Code)
}

func TestServer_QueryMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	_, err := srv.CallTool(context.Background(), ToolSearchUsers, map[string]any{"query": "nobody"})
	require.NoError(t, err)

	out, err := srv.queryMetrics()

	require.NoError(t, err)
	assert.Equal(t, int64(1), out.TotalQueries)
	assert.InDelta(t, 100.0, out.ZeroResultPct, 0.001)
	assert.Contains(t, out.ZeroResultQueries, "search:nobody")
}

func TestServer_OverMCPSession(t *testing.T) {
	// Given: the server connected to a client over in-memory transports
	srv, _ := newTestServer(t, nil)
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	// When: listing and calling tools
	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      ToolSearchUsers,
		Arguments: map[string]any{"query": "smith"},
	})

	// Then: all tools are listed and the search answers with a markdown table
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"search_users", "get_user", "get_user_by_email", "load_users", "index_status"}, names)
	assert.False(t, res.IsError)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "| 1 | John Smith |")

	// When: the tool fails
	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      ToolGetUser,
		Arguments: map[string]any{"id": 9999},
	})

	// Then: the failure is reported as a tool error
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestServer_ServeRejectsUnknownTransport(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	err := srv.Serve(context.Background(), "carrier-pigeon")

	assert.ErrorContains(t, err, "unknown transport")
}
