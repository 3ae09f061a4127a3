package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/source"
	"github.com/Aman-CERP/userindex/internal/telemetry"
	"github.com/Aman-CERP/userindex/internal/ui"
)

// blockingSource signals started on Fetch and waits for release.
func blockingSource(started chan<- struct{}, release <-chan struct{}) *fakeSource {
	return &fakeSource{responses: []func(context.Context) (source.Document, error){
		func(ctx context.Context) (source.Document, error) {
			close(started)
			select {
			case <-release:
				return sampleDoc(), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}}
}

func TestRunner_RejectsConcurrentTrigger(t *testing.T) {
	// Given: a run blocked inside the fetch step
	started := make(chan struct{})
	release := make(chan struct{})
	metrics := telemetry.NewMetrics()
	src := blockingSource(started, release)
	r := NewRunner(newTestPipeline(t, src, newTestEngine(t)), "", metrics)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), nil)
		done <- err
	}()
	<-started

	// When: a second trigger arrives
	_, err := r.Run(context.Background(), nil)

	// Then: it is rejected without touching the source
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIngestionInProgress))
	assert.Equal(t, 1, src.Calls())
	assert.True(t, r.IsRunning())
	status := r.Status()
	assert.Equal(t, ui.StageFetching.String(), status.Stage)
	_, parseErr := uuid.Parse(status.RunID)
	assert.NoError(t, parseErr)

	// And: the first run completes normally
	close(release)
	require.NoError(t, <-done)
	assert.False(t, r.IsRunning())
	assert.Equal(t, 1, r.Status().Runs)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IngestRuns.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.IngestRuns.WithLabelValues("success")))
}

func TestRunner_RejectsWhenAnotherProcessHoldsTheLock(t *testing.T) {
	// Given: the lock file held by another holder
	lockPath := filepath.Join(t.TempDir(), "data", "ingest.lock")
	other := NewFileLock(lockPath)
	acquired, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)

	src := &fakeSource{responses: []func(context.Context) (source.Document, error){respond(sampleDoc(), nil)}}
	r := NewRunner(newTestPipeline(t, src, newTestEngine(t)), lockPath, nil)

	// When: triggering a run
	_, err = r.Run(context.Background(), nil)

	// Then: it is rejected and the source is never called
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIngestionInProgress))
	assert.Zero(t, src.Calls())

	// When: the other holder releases
	require.NoError(t, other.Unlock())
	result, err := r.Run(context.Background(), nil)

	// Then: the run goes through
	require.NoError(t, err)
	assert.Equal(t, 3, result.Loaded)
}

func TestRunner_RecordsOutcomes(t *testing.T) {
	// Given: a source that succeeds once then returns garbage
	src := &fakeSource{responses: []func(context.Context) (source.Document, error){
		respond(sampleDoc(), nil),
		respond(source.Document{"users": []any{}}, nil),
	}}
	r := NewRunner(newTestPipeline(t, src, newTestEngine(t)), filepath.Join(t.TempDir(), "ingest.lock"), nil)

	// When: running twice
	first, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	firstID := r.Status().RunID
	_, err = r.Run(context.Background(), nil)
	require.Error(t, err)

	// Then: the status keeps the last success and the last error
	status := r.Status()
	assert.Equal(t, 2, status.Runs)
	assert.Equal(t, 1, status.Failures)
	assert.Same(t, first, status.LastResult)
	assert.Contains(t, status.LastError, apperrors.ErrCodeIngestionFailed)
	assert.NotEqual(t, firstID, status.RunID)
	assert.False(t, status.Running)
	assert.Empty(t, status.Stage)
	assert.WithinDuration(t, time.Now(), status.LastRunAt, time.Minute)
}

func TestRunner_ForwardsProgress(t *testing.T) {
	src := &fakeSource{responses: []func(context.Context) (source.Document, error){respond(sampleDoc(), nil)}}
	r := NewRunner(newTestPipeline(t, src, newTestEngine(t)), "", nil)
	rep := &recordingReporter{}

	_, err := r.Run(context.Background(), rep)

	require.NoError(t, err)
	assert.Equal(t, []ui.Stage{ui.StageFetching, ui.StageTransforming, ui.StageCommitting}, rep.stages)
}

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ingest.lock")
	a := NewFileLock(path)
	b := NewFileLock(path)

	ok, err := a.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, path)

	ok, err = b.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Unlock())
	require.NoError(t, a.Unlock())

	ok, err = b.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, b.Unlock())
	assert.Equal(t, path, b.Path())
}
