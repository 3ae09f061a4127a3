package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/userindex/internal/cache"
	"github.com/Aman-CERP/userindex/internal/config"
	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/index"
	"github.com/Aman-CERP/userindex/internal/search"
	"github.com/Aman-CERP/userindex/internal/source"
	"github.com/Aman-CERP/userindex/internal/store"
	"github.com/Aman-CERP/userindex/internal/telemetry"
)

// app is the in-process component graph: store, index, cache, engine and
// the ingestion runner on top of them.
type app struct {
	cfg     *config.Config
	metrics *telemetry.Metrics
	queries *telemetry.QueryMetrics
	engine  *search.Engine
	source  source.Source
	runner  *index.Runner
}

// newApp opens the configured store and builds the first generation from
// whatever it already holds.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	metrics := telemetry.NewMetrics()
	queries := telemetry.NewQueryMetrics()

	src, err := source.New(source.Options{URL: cfg.Source.URL, Timeout: cfg.Source.Timeout})
	if err != nil {
		return nil, err
	}

	builder, err := store.NewIndexBuilderWithBackend(cfg.Search.Backend)
	if err != nil {
		return nil, apperrors.ConfigError(err.Error(), nil)
	}

	st, err := store.NewStoreWithBackend(ctx, store.Options{
		Backend: cfg.Store.Backend,
		Path:    cfg.Store.Path,
		DSN:     cfg.Store.DSN,
	})
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStoreFailed,
			fmt.Sprintf("failed to open %s store", cfg.Store.Backend), err)
	}

	c := cache.New(cache.Config{
		SearchSize: cfg.Cache.SearchSize,
		LookupSize: cfg.Cache.LookupSize,
	}, metrics)

	engine, err := search.NewEngine(st, builder, c, search.EngineConfig{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
	}, search.WithMetrics(metrics), search.WithQueryMetrics(queries))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if err := engine.Open(ctx); err != nil {
		_ = engine.Close()
		return nil, err
	}

	pipeline, err := index.NewPipeline(src, engine, pipelineConfig(cfg), index.WithPipelineMetrics(metrics))
	if err != nil {
		_ = engine.Close()
		return nil, err
	}

	lockPath := cfg.LockPath()
	if strings.EqualFold(cfg.Store.Backend, string(store.BackendMemory)) {
		lockPath = ""
	}

	return &app{
		cfg:     cfg,
		metrics: metrics,
		queries: queries,
		engine:  engine,
		source:  src,
		runner:  index.NewRunner(pipeline, lockPath, metrics),
	}, nil
}

// pipelineConfig maps the ingestion section onto the pipeline's retry policy.
func pipelineConfig(cfg *config.Config) index.PipelineConfig {
	pc := index.DefaultPipelineConfig()
	pc.CollectionKey = cfg.Source.CollectionKey
	pc.AttemptTimeout = cfg.Ingestion.AttemptTimeout
	pc.Retry.MaxRetries = max(cfg.Ingestion.MaxAttempts-1, 0)
	pc.Retry.InitialDelay = cfg.Ingestion.RetryDelay
	pc.Retry.MaxDelay = cfg.Ingestion.RetryDelay
	return pc
}

// Close closes the engine, which closes the store.
func (a *app) Close() error {
	return a.engine.Close()
}
