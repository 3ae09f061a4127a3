package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Aman-CERP/userindex/internal/daemon"
)

// Resource URIs.
const (
	StatusURI       = "userindex://status"
	QueryMetricsURI = "userindex://query_metrics"
	UserURITemplate = "userindex://users/{id}"
	userURIPrefix   = "userindex://users/"
	jsonMIME        = "application/json"
)

// QueryMetricsOutput is the JSON body of the query_metrics resource.
type QueryMetricsOutput struct {
	TotalQueries        int64            `json:"total_queries"`
	ZeroResultPct       float64          `json:"zero_result_pct"`
	CacheHitCount       int64            `json:"cache_hit_count"`
	KindCounts          map[string]int64 `json:"kind_counts"`
	TopTerms            []QueryTermCount `json:"top_terms"`
	ZeroResultQueries   []string         `json:"zero_result_queries"`
	LatencyDistribution map[string]int64 `json:"latency_distribution"`
	Since               string           `json:"since"`
}

// QueryTermCount represents a term and its frequency.
type QueryTermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

func (s *Server) registerResources() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "status",
			URI:         StatusURI,
			Description: "Index status: user count, backend, last load and cache statistics",
			MIMEType:    jsonMIME,
		},
		func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return jsonResource(StatusURI, s.indexStatus())
		},
	)

	s.mcp.AddResourceTemplate(
		&mcp.ResourceTemplate{
			Name:        "user",
			URITemplate: UserURITemplate,
			Description: "A single user by id",
			MIMEType:    jsonMIME,
		},
		func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			return s.readUserResource(ctx, req.Params.URI)
		},
	)
}

// readUserResource serves userindex://users/{id}.
func (s *Server) readUserResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	raw, ok := strings.CutPrefix(uri, userURIPrefix)
	if !ok {
		return nil, NewResourceNotFoundError(uri)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, NewInvalidParamsError(fmt.Sprintf("invalid user id %q", raw))
	}

	u, err := s.handler.GetUser(ctx, daemon.GetUserParams{ID: id})
	if err != nil {
		if MapError(err).Code == ErrCodeNotFound {
			return nil, NewResourceNotFoundError(uri)
		}
		return nil, MapError(err)
	}
	return jsonResource(uri, u)
}

// registerQueryMetricsResource registers the query_metrics resource.
func (s *Server) registerQueryMetricsResource() {
	s.mcp.AddResource(
		&mcp.Resource{
			Name:        "query_metrics",
			URI:         QueryMetricsURI,
			Description: "Query pattern telemetry for this process",
			MIMEType:    jsonMIME,
		},
		func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			out, err := s.queryMetrics()
			if err != nil {
				return nil, err
			}
			return jsonResource(QueryMetricsURI, out)
		},
	)
}

func (s *Server) queryMetrics() (*QueryMetricsOutput, error) {
	s.mu.RLock()
	metrics := s.metrics
	s.mu.RUnlock()
	if metrics == nil {
		return nil, NewInvalidParamsError("query metrics not available")
	}

	snap := metrics.Snapshot()
	out := &QueryMetricsOutput{
		TotalQueries:        snap.TotalQueries,
		ZeroResultPct:       snap.ZeroResultPercentage(),
		CacheHitCount:       snap.CacheHitCount,
		KindCounts:          make(map[string]int64, len(snap.KindCounts)),
		TopTerms:            make([]QueryTermCount, 0, len(snap.TopTerms)),
		ZeroResultQueries:   snap.ZeroResultQueries,
		LatencyDistribution: make(map[string]int64, len(snap.LatencyDistribution)),
		Since:               formatTime(snap.Since),
	}
	for k, v := range snap.KindCounts {
		out.KindCounts[string(k)] = v
	}
	for _, tc := range snap.TopTerms {
		out.TopTerms = append(out.TopTerms, QueryTermCount{Term: tc.Term, Count: tc.Count})
	}
	for b, v := range snap.LatencyDistribution {
		out.LatencyDistribution[string(b)] = v
	}
	return out, nil
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, MapError(err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: jsonMIME, Text: string(content)},
		},
	}, nil
}
