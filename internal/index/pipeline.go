package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/search"
	"github.com/Aman-CERP/userindex/internal/source"
	"github.com/Aman-CERP/userindex/internal/telemetry"
	"github.com/Aman-CERP/userindex/internal/ui"
)

// DefaultCollectionKey is the document key holding the user records.
const DefaultCollectionKey = "users"

// Empty batch reasons.
const (
	ReasonMissing    = "missing"
	ReasonEmpty      = "empty"
	ReasonAllInvalid = "all_invalid"
)

// maxReportedSkips bounds the skip list kept in a RunResult.
const maxReportedSkips = 50

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// CollectionKey is the document key holding the records.
	CollectionKey string
	// Retry governs the fetch step.
	Retry apperrors.RetryConfig
	// AttemptTimeout bounds each fetch attempt; 0 leaves it to the source.
	AttemptTimeout time.Duration
}

// DefaultPipelineConfig returns 3 attempts with a fixed 2s delay.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		CollectionKey: DefaultCollectionKey,
		Retry:         apperrors.DefaultRetryConfig(),
	}
}

// RunResult is the outcome of a successful run.
type RunResult struct {
	// Loaded is the number of users in the new generation.
	Loaded int `json:"loaded"`
	// Skipped is the number of raw records dropped by the transformer.
	Skipped int `json:"skipped"`
	// Attempts is the number of fetch attempts made.
	Attempts int             `json:"attempts"`
	Duration time.Duration   `json:"duration"`
	Source   string          `json:"source"`
	Skips    []SkippedRecord `json:"skips,omitempty"`
}

// Reporter receives progress. ui.Renderer satisfies it.
type Reporter interface {
	UpdateProgress(event ui.ProgressEvent)
	AddError(event ui.ErrorEvent)
}

type nopReporter struct{}

func (nopReporter) UpdateProgress(ui.ProgressEvent) {}
func (nopReporter) AddError(ui.ErrorEvent)          {}

// Pipeline fetches, transforms and commits one generation per Run.
type Pipeline struct {
	source      source.Source
	committer   search.Committer
	transformer RecordTransformer
	config      PipelineConfig
	metrics     *telemetry.Metrics
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineMetrics sets the Prometheus collectors.
func WithPipelineMetrics(m *telemetry.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// NewPipeline creates a pipeline reading src and committing through committer.
func NewPipeline(src source.Source, committer search.Committer, config PipelineConfig, opts ...PipelineOption) (*Pipeline, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source is required", search.ErrNilDependency)
	}
	if committer == nil {
		return nil, fmt.Errorf("%w: committer is required", search.ErrNilDependency)
	}
	if config.CollectionKey == "" {
		config.CollectionKey = DefaultCollectionKey
	}
	p := &Pipeline{
		source:    src,
		committer: committer,
		config:    config,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Source returns the pipeline's source.
func (p *Pipeline) Source() source.Source {
	return p.source
}

// Run executes one ingestion. Failures are returned as ErrCodeIngestionFailed
// wrapping the cause; the store, index and cache are only touched when the
// fetch and transform steps succeed. rep may be nil.
func (p *Pipeline) Run(ctx context.Context, rep Reporter) (*RunResult, error) {
	if rep == nil {
		rep = nopReporter{}
	}
	start := time.Now()
	result := &RunResult{Source: p.source.Location()}

	rep.UpdateProgress(ui.ProgressEvent{Stage: ui.StageFetching, Message: result.Source})
	records, err := p.fetch(ctx, result)
	if err != nil {
		return nil, p.fail(err, result, start)
	}

	rep.UpdateProgress(ui.ProgressEvent{Stage: ui.StageTransforming, Total: len(records)})
	users, skipped := p.transformer.Batch(records)
	result.Skipped = len(skipped)
	for i, s := range skipped {
		slog.Warn("record_skipped", slog.Int("index", s.Index), slog.String("reason", s.Reason))
		rep.AddError(ui.ErrorEvent{
			Record: s.Index,
			Err:    errors.New(s.Reason),
			IsWarn: true,
		})
		if i < maxReportedSkips {
			result.Skips = append(result.Skips, s)
		}
	}
	p.metrics.RecordSkipped(len(skipped))
	if len(users) == 0 {
		return nil, p.fail(apperrors.EmptyBatch(p.config.CollectionKey, ReasonAllInvalid), result, start)
	}
	rep.UpdateProgress(ui.ProgressEvent{Stage: ui.StageTransforming, Current: len(records), Total: len(records)})

	rep.UpdateProgress(ui.ProgressEvent{Stage: ui.StageCommitting, Total: len(users)})
	loaded, err := p.committer.Commit(ctx, users)
	if err != nil {
		return nil, p.fail(err, result, start)
	}
	result.Loaded = loaded
	result.Duration = time.Since(start)
	rep.UpdateProgress(ui.ProgressEvent{Stage: ui.StageCommitting, Current: loaded, Total: len(users)})

	slog.Info("ingest_completed",
		slog.String("source", result.Source),
		slog.Int("loaded", result.Loaded),
		slog.Int("skipped", result.Skipped),
		slog.Int("attempts", result.Attempts),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// fetch runs the fetch and collection checks under the retry policy.
func (p *Pipeline) fetch(ctx context.Context, result *RunResult) ([]any, error) {
	retry := p.config.Retry
	onRetry := retry.OnRetry
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		slog.Warn("ingest_attempt_failed",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", wait),
			apperrors.LogAttr(err))
		if onRetry != nil {
			onRetry(attempt, err, wait)
		}
	}

	return apperrors.RetryWithResult(ctx, retry, func() ([]any, error) {
		result.Attempts++
		records, err := p.attempt(ctx)
		switch {
		case err == nil:
			p.metrics.RecordIngestAttempt("success")
		case apperrors.IsRetryable(err):
			p.metrics.RecordIngestAttempt("retryable")
		default:
			p.metrics.RecordIngestAttempt("fatal")
		}
		return records, err
	})
}

func (p *Pipeline) attempt(ctx context.Context) ([]any, error) {
	attemptCtx := ctx
	if p.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, p.config.AttemptTimeout)
		defer cancel()
	}

	doc, err := p.source.Fetch(attemptCtx)
	if err != nil {
		// The attempt deadline expiring is a timeout, not a cancellation.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, apperrors.New(apperrors.ErrCodeSourceTimeout,
				fmt.Sprintf("fetch attempt exceeded %s", p.config.AttemptTimeout), err)
		}
		return nil, err
	}
	return extractRecords(doc, p.config.CollectionKey)
}

// extractRecords returns the collection array. An absent or null key and
// an empty array are both empty batches, told apart by the reason detail.
func extractRecords(doc source.Document, key string) ([]any, error) {
	v, ok := doc[key]
	if !ok || v == nil {
		return nil, apperrors.EmptyBatch(key, ReasonMissing)
	}
	records, ok := v.([]any)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeSourceInvalid,
			fmt.Sprintf("collection %q is %s, not an array", key, jsonKind(v)), nil)
	}
	if len(records) == 0 {
		return nil, apperrors.EmptyBatch(key, ReasonEmpty)
	}
	return records, nil
}

func (p *Pipeline) fail(err error, result *RunResult, start time.Time) error {
	slog.Error("ingest_failed",
		slog.String("source", result.Source),
		slog.Int("attempts", result.Attempts),
		slog.Duration("duration", time.Since(start)),
		apperrors.LogAttr(err))
	return apperrors.IngestionError(err).
		WithDetail("attempts", fmt.Sprint(result.Attempts))
}
