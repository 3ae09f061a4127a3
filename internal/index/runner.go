package index

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/telemetry"
	"github.com/Aman-CERP/userindex/internal/ui"
)

// RunnerStatus is a snapshot of the runner for status surfaces.
type RunnerStatus struct {
	Running    bool       `json:"running"`
	RunID      string     `json:"run_id,omitempty"`
	Stage      string     `json:"stage,omitempty"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	Runs       int        `json:"runs"`
	Failures   int        `json:"failures"`
	LastResult *RunResult `json:"last_result,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	LastRunAt  time.Time  `json:"last_run_at,omitempty"`
}

// Runner allows one ingestion at a time. A second trigger, in this process
// or another one sharing the lock file, is rejected with
// ErrCodeIngestionInProgress rather than queued.
type Runner struct {
	pipeline *Pipeline
	lock     *FileLock
	metrics  *telemetry.Metrics

	running sync.Mutex

	mu     sync.Mutex
	status RunnerStatus
}

// NewRunner creates a runner. lockPath may be empty to skip the
// cross-process lock (memory store).
func NewRunner(p *Pipeline, lockPath string, metrics *telemetry.Metrics) *Runner {
	r := &Runner{pipeline: p, metrics: metrics}
	if lockPath != "" {
		r.lock = NewFileLock(lockPath)
	}
	return r
}

// Run executes the pipeline unless another run is in flight. rep may be nil.
func (r *Runner) Run(ctx context.Context, rep Reporter) (*RunResult, error) {
	if !r.running.TryLock() {
		r.metrics.RecordIngestRun("rejected", 0)
		return nil, inProgress("an ingestion is already running")
	}
	defer r.running.Unlock()

	if r.lock != nil {
		acquired, err := r.lock.TryLock()
		if err != nil {
			return nil, apperrors.New(apperrors.ErrCodeLockFailed, "failed to acquire ingestion lock", err).
				WithDetail("path", r.lock.Path())
		}
		if !acquired {
			r.metrics.RecordIngestRun("rejected", 0)
			return nil, inProgress("another process is running an ingestion").
				WithDetail("lock", r.lock.Path())
		}
		defer func() {
			if err := r.lock.Unlock(); err != nil {
				slog.Warn("ingest_unlock_failed", slog.String("error", err.Error()))
			}
		}()
	}

	runID := uuid.NewString()
	start := time.Now()
	r.begin(runID, start)
	slog.Info("ingest_started", slog.String("run_id", runID), slog.String("source", r.Source()))

	result, err := r.pipeline.Run(ctx, &stageTracker{next: rep, runner: r})
	r.finish(result, err)

	outcome := "success"
	if err != nil {
		outcome = "failed"
	}
	r.metrics.RecordIngestRun(outcome, time.Since(start))
	return result, err
}

// Source returns the location the runner ingests from.
func (r *Runner) Source() string {
	return r.pipeline.Source().Location()
}

// Status returns a snapshot of the runner.
func (r *Runner) Status() RunnerStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// IsRunning reports whether a run is in flight in this process.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status.Running
}

func (r *Runner) begin(runID string, start time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Running = true
	r.status.RunID = runID
	r.status.StartedAt = start
	r.status.Stage = ui.StageFetching.String()
}

func (r *Runner) finish(result *RunResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Running = false
	r.status.Stage = ""
	r.status.Runs++
	r.status.LastRunAt = time.Now()
	if err != nil {
		r.status.Failures++
		r.status.LastError = err.Error()
		return
	}
	r.status.LastError = ""
	r.status.LastResult = result
}

func (r *Runner) setStage(stage ui.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status.Stage = stage.String()
}

func inProgress(msg string) *apperrors.AppError {
	return apperrors.New(apperrors.ErrCodeIngestionInProgress, msg, nil).
		WithSuggestion("Wait for the running ingestion to finish, then retry")
}

// stageTracker records the current stage before forwarding to the caller's
// reporter.
type stageTracker struct {
	next   Reporter
	runner *Runner
}

func (t *stageTracker) UpdateProgress(event ui.ProgressEvent) {
	t.runner.setStage(event.Stage)
	if t.next != nil {
		t.next.UpdateProgress(event)
	}
}

func (t *stageTracker) AddError(event ui.ErrorEvent) {
	if t.next != nil {
		t.next.AddError(event)
	}
}
