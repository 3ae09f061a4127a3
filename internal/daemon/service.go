package daemon

import (
	"context"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/index"
	"github.com/Aman-CERP/userindex/internal/search"
	"github.com/Aman-CERP/userindex/internal/store"
)

// Ingester runs ingestion on demand. *index.Runner satisfies it.
type Ingester interface {
	Run(ctx context.Context, rep index.Reporter) (*index.RunResult, error)
	Status() index.RunnerStatus
	Source() string
}

// Service implements RequestHandler over a searcher and an ingester.
type Service struct {
	searcher search.Searcher
	ingester Ingester
	watching func() bool
}

// NewService creates a service. ingester may be nil, in which case the
// ingest method fails.
func NewService(searcher search.Searcher, ingester Ingester) *Service {
	return &Service{searcher: searcher, ingester: ingester}
}

// SetWatching reports the file watcher state through fn.
func (s *Service) SetWatching(fn func() bool) {
	s.watching = fn
}

// Search implements RequestHandler.
func (s *Service) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	users, err := s.searcher.Search(ctx, params.Query, params.Limit)
	if err != nil {
		return nil, err
	}
	return &SearchResult{Query: params.Query, Count: len(users), Users: users}, nil
}

// GetUser implements RequestHandler.
func (s *Service) GetUser(ctx context.Context, params GetUserParams) (*store.User, error) {
	return s.searcher.FindByID(ctx, params.ID)
}

// GetUserByEmail implements RequestHandler.
func (s *Service) GetUserByEmail(ctx context.Context, params GetUserByEmailParams) (*store.User, error) {
	return s.searcher.FindByEmail(ctx, params.Email)
}

// Ingest implements RequestHandler.
func (s *Service) Ingest(ctx context.Context) (*IngestResult, error) {
	if s.ingester == nil {
		return nil, apperrors.InternalError("ingestion is not configured", nil)
	}
	result, err := s.ingester.Run(ctx, nil)
	if err != nil {
		return nil, err
	}
	return NewIngestResult(result), nil
}

// Status implements RequestHandler.
func (s *Service) Status() StatusResult {
	stats := s.searcher.Stats()
	status := StatusResult{
		Backend:     stats.Backend,
		Users:       stats.Users,
		Generation:  stats.Generation,
		CommittedAt: stats.CommittedAt,
		Cache:       stats.Cache,
	}
	if s.ingester != nil {
		status.Source = s.ingester.Source()
		status.Ingestion = s.ingester.Status()
	}
	if s.watching != nil {
		status.Watching = s.watching()
	}
	return status
}

// NewIngestResult converts a run result to its wire form.
func NewIngestResult(r *index.RunResult) *IngestResult {
	return &IngestResult{
		Loaded:   r.Loaded,
		Skipped:  r.Skipped,
		Attempts: r.Attempts,
		Duration: r.Duration.String(),
		Source:   r.Source,
		Skips:    r.Skips,
	}
}

var (
	_ RequestHandler = (*Service)(nil)
	_ Ingester       = (*index.Runner)(nil)
)
