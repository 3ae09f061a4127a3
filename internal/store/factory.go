package store

import (
	"context"
	"fmt"
	"strings"
)

// Backend names a Store implementation.
type Backend string

const (
	// BackendSQLite is a single SQLite file (default).
	BackendSQLite Backend = "sqlite"
	// BackendPostgres is a Postgres database reached through pgx.
	BackendPostgres Backend = "postgres"
	// BackendMemory keeps users in process memory only.
	BackendMemory Backend = "memory"
)

// IndexBackend names an IndexBuilder implementation.
type IndexBackend string

const (
	// IndexBackendBleve builds in-memory bleve indexes (default).
	IndexBackendBleve IndexBackend = "bleve"
	// IndexBackendScan answers queries with a linear scan.
	IndexBackendScan IndexBackend = "scan"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend string
	// Path is the SQLite file; empty opens an in-memory database.
	Path string
	// DSN is the Postgres connection string.
	DSN string
}

// NewStoreWithBackend opens the Store named by opts.Backend.
func NewStoreWithBackend(ctx context.Context, opts Options) (Store, error) {
	switch Backend(strings.ToLower(opts.Backend)) {
	case BackendSQLite, "":
		return NewSQLiteStore(ctx, opts.Path)
	case BackendPostgres:
		if opts.DSN == "" {
			return nil, fmt.Errorf("postgres backend requires a DSN")
		}
		return NewPostgresStore(ctx, opts.DSN)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s (valid options: sqlite, postgres, memory)", opts.Backend)
	}
}

// NewIndexBuilderWithBackend returns the IndexBuilder named by backend.
func NewIndexBuilderWithBackend(backend string) (IndexBuilder, error) {
	switch IndexBackend(strings.ToLower(backend)) {
	case IndexBackendBleve, "":
		return NewBleveIndexBuilder(), nil
	case IndexBackendScan:
		return NewScanIndexBuilder(), nil
	default:
		return nil, fmt.Errorf("unknown search backend: %s (valid options: bleve, scan)", backend)
	}
}

// EmptyGeneration returns a generation with no users, used before the
// first ingestion completes.
func EmptyGeneration() IndexGeneration {
	return &scanGeneration{}
}
