package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumeet513/snowflake-data-catalog/pkg/models"
)

func TestMemoryLedger_ReadUnknownReturnsNotFound(t *testing.T) {
	l := NewMemoryLedger(time.Minute)

	status, err := l.Read(context.Background(), "missing")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotFound, status.Status)
	assert.Equal(t, "missing", status.ProcessID)
}

func TestMemoryLedger_UpdateReplacesRecord(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(time.Minute)

	require.NoError(t, l.Update(ctx, "p1", models.ProgressUpdate{
		Status: models.StatusProcessing, Phase: models.PhaseConnection, Progress: 10,
	}))
	stats := &models.CollectionStats{TableCount: 3}
	require.NoError(t, l.Update(ctx, "p1", models.ProgressUpdate{
		Status: models.StatusCompleted, Phase: models.PhaseCompleted, Progress: 150, Stats: stats,
	}))
	stats.TableCount = 99

	status, err := l.Read(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.Stats)
	assert.Equal(t, 3, status.Stats.TableCount)
	assert.False(t, status.Timestamp.IsZero())
}

func TestMemoryLedger_Expiry(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Update(ctx, "p1", models.ProgressUpdate{Status: models.StatusProcessing}))

	now = now.Add(59 * time.Second)
	status, err := l.Read(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, status.Status)

	now = now.Add(2 * time.Second)
	status, err = l.Read(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotFound, status.Status)

	require.NoError(t, l.Update(ctx, "p2", models.ProgressUpdate{Status: models.StatusProcessing}))
	assert.Len(t, l.records, 1)
}

func TestMemoryLedger_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(progress int) {
			defer wg.Done()
			_ = l.Update(ctx, "p1", models.ProgressUpdate{Status: models.StatusProcessing, Progress: progress})
		}(i)
	}
	wg.Wait()

	status, err := l.Read(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, status.Status)
}
