// Package search answers free-text queries and point lookups over the
// current user generation, consulting the cache first.
package search

import (
	"context"
	"time"

	"github.com/Aman-CERP/userindex/internal/cache"
	"github.com/Aman-CERP/userindex/internal/store"
)

// Default result limits.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Searcher is the read side used by the inbound surfaces.
type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]*store.User, error)
	FindByID(ctx context.Context, id int64) (*store.User, error)
	FindByEmail(ctx context.Context, email string) (*store.User, error)
	Stats() *EngineStats
}

// Committer installs a new generation.
type Committer interface {
	Commit(ctx context.Context, users []*store.User) (int, error)
}

// EngineConfig configures result limits.
type EngineConfig struct {
	// DefaultLimit applies when a caller passes limit <= 0.
	DefaultLimit int
	// MaxLimit clamps larger limits.
	MaxLimit int
}

// DefaultConfig returns the default limits.
func DefaultConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit: DefaultLimit,
		MaxLimit:     MaxLimit,
	}
}

// EngineStats describes the current generation.
type EngineStats struct {
	Backend     string      `json:"backend"`
	Users       int         `json:"users"`
	Generation  uint64      `json:"generation"`
	CommittedAt time.Time   `json:"committed_at,omitempty"`
	Cache       cache.Stats `json:"cache"`
}
