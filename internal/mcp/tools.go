package mcp

import (
	"github.com/Aman-CERP/userindex/internal/daemon"
	"github.com/Aman-CERP/userindex/internal/index"
)

// Tool names.
const (
	ToolSearchUsers    = "search_users"
	ToolGetUser        = "get_user"
	ToolGetUserByEmail = "get_user_by_email"
	ToolLoadUsers      = "load_users"
	ToolIndexStatus    = "index_status"
)

// SearchUsersInput defines the input schema for the search_users tool.
type SearchUsersInput struct {
	Query string `json:"query" jsonschema:"free text matched against first and last name (substring), email (exact) and ssn (exact)"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of users, default 20, max 100"`
}

// GetUserInput defines the input schema for the get_user tool.
type GetUserInput struct {
	ID int64 `json:"id" jsonschema:"the user id"`
}

// GetUserByEmailInput defines the input schema for the get_user_by_email tool.
type GetUserByEmailInput struct {
	Email string `json:"email" jsonschema:"the email address, compared case-insensitively"`
}

// LoadUsersInput defines the input schema for the load_users tool (no parameters).
type LoadUsersInput struct{}

// LoadUsersOutput defines the output schema for the load_users tool.
type LoadUsersOutput struct {
	Loaded   int                   `json:"loaded" jsonschema:"users in the new generation"`
	Skipped  int                   `json:"skipped" jsonschema:"source records that could not be converted"`
	Attempts int                   `json:"attempts" jsonschema:"fetch attempts made"`
	Duration string                `json:"duration"`
	Source   string                `json:"source"`
	Skips    []index.SkippedRecord `json:"skips,omitempty" jsonschema:"position and reason of each skipped record"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Source      string          `json:"source"`
	Backend     string          `json:"backend" jsonschema:"search index backend: bleve or scan"`
	Users       int             `json:"users"`
	Generation  uint64          `json:"generation" jsonschema:"increments on every successful load"`
	CommittedAt string          `json:"committed_at,omitempty" jsonschema:"RFC3339 time of the last successful load"`
	Ingestion   IngestionStatus `json:"ingestion"`
	Cache       CacheStatus     `json:"cache"`
	Watching    bool            `json:"watching" jsonschema:"true if source file changes trigger a reload"`
}

// IngestionStatus reports the ingestion runner.
type IngestionStatus struct {
	Running   bool   `json:"running"`
	Stage     string `json:"stage,omitempty"`
	Runs      int    `json:"runs"`
	Failures  int    `json:"failures"`
	LastRunAt string `json:"last_run_at,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// CacheStatus reports cache effectiveness.
type CacheStatus struct {
	Entries int     `json:"entries"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

func toLoadOutput(r *daemon.IngestResult) LoadUsersOutput {
	return LoadUsersOutput{
		Loaded:   r.Loaded,
		Skipped:  r.Skipped,
		Attempts: r.Attempts,
		Duration: r.Duration,
		Source:   r.Source,
		Skips:    r.Skips,
	}
}
