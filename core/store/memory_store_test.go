package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinri/neural-forge/core/store"
	"github.com/infinri/neural-forge/pkg/clock"
)

func TestMemoryStore_AddGetMemory(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	entry := store.MemoryEntry{ID: "m1", ProjectID: "p1", Content: "hello world", Metadata: map[string]any{"k": "v"}}
	require.NoError(t, s.AddMemory(ctx, entry))

	got, err := s.GetMemory(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello world", got.Content)
	assert.Equal(t, "v", got.Metadata["k"])
}

func TestMemoryStore_GetMemory_NotFound(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.GetMemory(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMemoryStore_ClaimNextTask_ConcurrentDistinct(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()

	ids := []string{"t1", "t2", "t3"}
	for _, id := range ids {
		require.NoError(t, s.EnqueueTask(ctx, id, "p1", nil))
		time.Sleep(time.Millisecond)
	}

	var mu sync.Mutex
	claimed := make(map[string]bool)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task, ok, err := s.ClaimNextTask(ctx, "p1")
			require.NoError(t, err)
			require.True(t, ok)
			mu.Lock()
			claimed[task.ID] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, 3)
	for _, id := range ids {
		assert.True(t, claimed[id])
	}

	_, ok, err := s.ClaimNextTask(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_WatchdogRequeue(t *testing.T) {
	mock := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := store.NewMemoryStoreWithClock(mock)
	ctx := context.Background()

	require.NoError(t, s.EnqueueTask(ctx, "t1", "p1", nil))
	_, ok, err := s.ClaimNextTask(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)

	mock.Advance(120 * time.Second)

	affected, err := s.RequeueStaleInProgress(ctx, 60*time.Second, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, affected)

	affected, err = s.RequeueStaleInProgress(ctx, 60*time.Second, 10, "")
	require.NoError(t, err)
	assert.Equal(t, 0, affected)
}

func TestMemoryStore_WatchdogFail(t *testing.T) {
	mock := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s := store.NewMemoryStoreWithClock(mock)
	ctx := context.Background()

	require.NoError(t, s.EnqueueTask(ctx, "t1", "p1", nil))
	_, _, err := s.ClaimNextTask(ctx, "p1")
	require.NoError(t, err)

	mock.Advance(120 * time.Second)

	affected, err := s.FailStaleInProgress(ctx, 60*time.Second, 10, "", "ERR.STALE_TASK")
	require.NoError(t, err)
	assert.Equal(t, 1, affected)

	task, ok, err := s.ClaimNextTask(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, ok)
	_ = task
}

func TestMemoryStore_GovernanceTokenMetricStreamingMean(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	_, err := s.RecordGovernanceTokenMetric(ctx, "security::RateLimitGuard", "global", 0.5, now)
	require.NoError(t, err)
	_, err = s.RecordGovernanceTokenMetric(ctx, "security::RateLimitGuard", "global", 1.0, now)
	require.NoError(t, err)
	m, err := s.RecordGovernanceTokenMetric(ctx, "security::RateLimitGuard", "global", 0.0, now)
	require.NoError(t, err)

	assert.Equal(t, int64(3), m.ActivationCount)
	assert.InDelta(t, 0.5, m.EffectivenessScore, 1e-6)
}

func TestMemoryStore_UpdateTaskStatus_UnknownID(t *testing.T) {
	s := store.NewMemoryStore()
	ok, err := s.UpdateTaskStatus(context.Background(), "nope", store.TaskDone, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_UpdateTaskStatus_InvalidStatus(t *testing.T) {
	s := store.NewMemoryStore()
	_, err := s.UpdateTaskStatus(context.Background(), "t1", store.TaskStatus("bogus"), nil)
	assert.ErrorIs(t, err, store.ErrInvalidStatus)
}

func TestNormalizeProjectID(t *testing.T) {
	got, err := store.NormalizeProjectID("  MyProj_01 ")
	require.NoError(t, err)
	assert.Equal(t, "myproj_01", got)

	again, err := store.NormalizeProjectID(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)

	_, err = store.NormalizeProjectID("")
	assert.Error(t, err)

	_, err = store.NormalizeProjectID("_leadingunderscore")
	assert.Error(t, err)

	_, err = store.NormalizeProjectID("has space")
	assert.Error(t, err)
}

func TestNormalizeTokenMetricProjectID_Global(t *testing.T) {
	got, err := store.NormalizeTokenMetricProjectID("")
	require.NoError(t, err)
	assert.Equal(t, store.GlobalProjectID, got)
}
