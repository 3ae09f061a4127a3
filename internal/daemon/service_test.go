package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Aman-CERP/userindex/internal/errors"
	"github.com/Aman-CERP/userindex/internal/index"
)

func TestService_Status(t *testing.T) {
	// Given: a service with an ingester and a watcher reporting active
	ing := &stubIngester{}
	svc := NewService(seededEngine(t), ing)
	svc.SetWatching(func() bool { return true })

	// When: reading status
	status := svc.Status()

	// Then: engine, ingester and watcher state are merged
	assert.Equal(t, "scan", status.Backend)
	assert.Equal(t, 3, status.Users)
	assert.Equal(t, uint64(1), status.Generation)
	assert.WithinDuration(t, time.Now(), status.CommittedAt, time.Minute)
	assert.Equal(t, "file:///tmp/users.json", status.Source)
	assert.True(t, status.Watching)
	assert.False(t, status.Running)
}

func TestService_StatusWithoutIngester(t *testing.T) {
	status := NewService(seededEngine(t), nil).Status()

	assert.Empty(t, status.Source)
	assert.Zero(t, status.Ingestion.Runs)
	assert.False(t, status.Watching)
}

func TestService_Ingest(t *testing.T) {
	ing := &stubIngester{result: &index.RunResult{Loaded: 2, Attempts: 1, Duration: 250 * time.Millisecond, Source: "s"}}
	svc := NewService(seededEngine(t), ing)

	result, err := svc.Ingest(context.Background())

	require.NoError(t, err)
	assert.Equal(t, &IngestResult{Loaded: 2, Attempts: 1, Duration: "250ms", Source: "s"}, result)
	assert.Equal(t, 1, svc.Status().Ingestion.Runs)
}

func TestService_IngestWithoutIngester(t *testing.T) {
	_, err := NewService(seededEngine(t), nil).Ingest(context.Background())

	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInternal))
}

func TestService_SearchPassesLimit(t *testing.T) {
	svc := NewService(seededEngine(t), nil)

	result, err := svc.Search(context.Background(), SearchParams{Query: "jo", Limit: 1})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, int64(1), result.Users[0].ID)
}
