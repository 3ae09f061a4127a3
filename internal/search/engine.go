package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/userindex/internal/cache"
	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/store"
	"github.com/Aman-CERP/userindex/internal/telemetry"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine owns the generation gate: readers hold the read lock for the whole
// cache-index-store path, Commit holds the write lock while it replaces the
// store, swaps the index and clears the cache. A reader therefore never sees
// a store and an index from different generations, and never caches a
// result computed from the previous one after the commit.
type Engine struct {
	gate sync.RWMutex

	store   store.Store
	builder store.IndexBuilder
	cache   *cache.Cache
	config  EngineConfig

	gen         store.IndexGeneration
	generation  uint64
	committedAt time.Time

	metrics *telemetry.Metrics
	queries *telemetry.QueryMetrics
}

var (
	_ Searcher  = (*Engine)(nil)
	_ Committer = (*Engine)(nil)
)

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithMetrics sets the Prometheus collectors.
func WithMetrics(m *telemetry.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithQueryMetrics sets the local query telemetry collector.
func WithQueryMetrics(q *telemetry.QueryMetrics) EngineOption {
	return func(e *Engine) {
		e.queries = q
	}
}

// NewEngine creates an engine serving an empty generation until Open or
// Commit installs one.
func NewEngine(st store.Store, builder store.IndexBuilder, c *cache.Cache, config EngineConfig, opts ...EngineOption) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: store is required", ErrNilDependency)
	}
	if builder == nil {
		return nil, fmt.Errorf("%w: index builder is required", ErrNilDependency)
	}
	if c == nil {
		return nil, fmt.Errorf("%w: cache is required", ErrNilDependency)
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultLimit
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = MaxLimit
	}
	if config.DefaultLimit > config.MaxLimit {
		config.DefaultLimit = config.MaxLimit
	}

	e := &Engine{
		store:   st,
		builder: builder,
		cache:   c,
		config:  config,
		gen:     store.EmptyGeneration(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Open builds the first generation from what the store already holds, so
// a restarted process can serve a previously loaded SQLite or Postgres
// store before the next ingestion.
func (e *Engine) Open(ctx context.Context) error {
	e.gate.Lock()
	defer e.gate.Unlock()

	users, err := e.store.All(ctx)
	if err != nil {
		return err
	}
	gen, err := e.builder.Build(ctx, users)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeIndexFailed, "failed to build index", err)
	}
	e.install(gen)
	e.cache.InvalidateAll()
	e.metrics.SetUsers(len(users))

	slog.Info("index_opened",
		slog.String("backend", e.builder.Name()),
		slog.Int("users", len(users)))
	return nil
}

// Commit replaces the store contents with users and installs the index
// built from the post-replace snapshot. The index is built inside the store
// transaction, so a build failure leaves the previous generation intact.
// The cache is cleared before Commit returns.
func (e *Engine) Commit(ctx context.Context, users []*store.User) (int, error) {
	e.gate.Lock()
	defer e.gate.Unlock()

	var next store.IndexGeneration
	n, err := e.store.ReplaceAll(ctx, users, func(snapshot []*store.User) error {
		gen, err := e.builder.Build(ctx, snapshot)
		if err != nil {
			return apperrors.New(apperrors.ErrCodeIndexFailed, "failed to build index", err)
		}
		next = gen
		return nil
	})
	if err != nil {
		// Discard a generation built for a rolled-back replace.
		if next != nil {
			_ = next.Close()
		}
		return 0, err
	}

	e.install(next)
	e.cache.InvalidateAll()
	e.metrics.SetUsers(n)
	return n, nil
}

// install swaps in gen and closes the previous generation. Callers hold the
// write lock.
func (e *Engine) install(gen store.IndexGeneration) {
	prev := e.gen
	e.gen = gen
	e.generation++
	e.committedAt = time.Now()
	if prev != nil {
		if err := prev.Close(); err != nil {
			slog.Warn("index_close_failed", slog.String("error", err.Error()))
		}
	}
}

// Search returns at most limit users matching text, best match first.
// limit <= 0 selects the default limit; larger limits are clamped.
func (e *Engine) Search(ctx context.Context, text string, limit int) ([]*store.User, error) {
	start := time.Now()
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.New(apperrors.ErrCodeQueryEmpty, "search text must not be empty", nil).
			WithSuggestion("Pass a name fragment, an email address or an SSN")
	}
	limit = e.normalizeLimit(limit)

	e.gate.RLock()
	defer e.gate.RUnlock()

	gen := e.gen
	users, hit, err := e.cache.Search(ctx, text, limit, func(ctx context.Context) ([]*store.User, error) {
		return e.searchIndex(ctx, gen, text, limit)
	})
	if err != nil {
		return nil, err
	}

	latency := time.Since(start)
	e.metrics.RecordSearch(e.builder.Name(), latency)
	e.queries.Record(telemetry.QueryEvent{
		Kind:        telemetry.QueryKindSearch,
		Query:       text,
		ResultCount: len(users),
		Latency:     latency,
		CacheHit:    hit,
	})
	slog.Debug("search_completed",
		slog.String("query", text),
		slog.Int("limit", limit),
		slog.Int("results", len(users)),
		slog.Bool("cache_hit", hit),
		slog.Duration("latency", latency))
	return users, nil
}

// searchIndex resolves hits from gen against the store, keeping hit order.
// It may outlive the caller that started it, so it never touches the gate.
func (e *Engine) searchIndex(ctx context.Context, gen store.IndexGeneration, text string, limit int) ([]*store.User, error) {
	hits, err := gen.Search(ctx, text, limit)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeSearchFailed, "search failed", err)
	}
	if len(hits) == 0 {
		return []*store.User{}, nil
	}
	ids := make([]int64, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return e.store.GetMany(ctx, ids)
}

// FindByID returns the user with id, or ErrCodeUserNotFound.
func (e *Engine) FindByID(ctx context.Context, id int64) (*store.User, error) {
	start := time.Now()
	e.gate.RLock()
	defer e.gate.RUnlock()

	u, hit, err := e.cache.UserByID(ctx, id, func(ctx context.Context) (*store.User, error) {
		return e.store.GetByID(ctx, id)
	})
	e.recordLookup(telemetry.QueryKindByID, strconv.FormatInt(id, 10), u, hit, start)
	return u, err
}

// FindByEmail returns the user with email, compared case-insensitively, or
// ErrCodeUserNotFound.
func (e *Engine) FindByEmail(ctx context.Context, email string) (*store.User, error) {
	start := time.Now()
	key := store.NormalizeEmail(email)
	if key == "" {
		return nil, apperrors.ValidationError("email must not be empty", nil)
	}

	e.gate.RLock()
	defer e.gate.RUnlock()

	u, hit, err := e.cache.UserByEmail(ctx, key, func(ctx context.Context) (*store.User, error) {
		return e.store.GetByEmail(ctx, key)
	})
	e.recordLookup(telemetry.QueryKindByEmail, key, u, hit, start)
	return u, err
}

func (e *Engine) recordLookup(kind telemetry.QueryKind, query string, u *store.User, hit bool, start time.Time) {
	found := 0
	if u != nil {
		found = 1
	}
	label := "id"
	if kind == telemetry.QueryKindByEmail {
		label = "email"
	}
	e.metrics.RecordLookup(label, u != nil)
	e.queries.Record(telemetry.QueryEvent{
		Kind:        kind,
		Query:       query,
		ResultCount: found,
		Latency:     time.Since(start),
		CacheHit:    hit,
	})
}

// Stats describes the current generation.
func (e *Engine) Stats() *EngineStats {
	e.gate.RLock()
	defer e.gate.RUnlock()

	return &EngineStats{
		Backend:     e.builder.Name(),
		Users:       e.gen.Count(),
		Generation:  e.generation,
		CommittedAt: e.committedAt,
		Cache:       e.cache.Stats(),
	}
}

// QueryMetrics returns the local query telemetry, or nil when disabled.
func (e *Engine) QueryMetrics() *telemetry.QueryMetricsSnapshot {
	if e.queries == nil {
		return nil
	}
	return e.queries.Snapshot()
}

// Config returns the effective limits.
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Close releases the current generation and the store.
func (e *Engine) Close() error {
	e.gate.Lock()
	defer e.gate.Unlock()

	var errs []error
	if e.gen != nil {
		if err := e.gen.Close(); err != nil {
			errs = append(errs, err)
		}
		e.gen = store.EmptyGeneration()
	}
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) normalizeLimit(limit int) int {
	if limit <= 0 {
		return e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		return e.config.MaxLimit
	}
	return limit
}
