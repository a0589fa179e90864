package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinri/neural-forge/core/store"
	"github.com/infinri/neural-forge/pkg/clock"
)

func TestWatchdog_RequeuesStaleTasks(t *testing.T) {
	mockClock := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	st := store.NewMemoryStoreWithClock(mockClock)
	ctx := context.Background()

	require.NoError(t, st.EnqueueTask(ctx, "t1", "p1", map[string]any{}))
	_, ok, err := st.ClaimNextTask(ctx, "p1")
	require.NoError(t, err)
	require.True(t, ok)

	mockClock.Advance(time.Hour)

	var iterations int
	cfgLoader := func() (Config, error) {
		iterations++
		return Config{
			Enabled:         true,
			Action:          ActionRequeue,
			TTLSeconds:      60,
			IntervalSeconds: 1,
			BatchLimit:      10,
		}.normalized(), nil
	}

	w := New(st, WithClock(mockClock), WithConfigLoader(cfgLoader))
	require.NoError(t, w.Start(ctx))

	assert.Eventually(t, func() bool {
		count, _ := st.CountStaleInProgress(ctx, 60*time.Second, "")
		return count == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop(ctx))
	assert.True(t, iterations > 0)
}

func TestWatchdog_DisabledNeverScans(t *testing.T) {
	st := store.NewMemoryStore()
	cfgLoader := func() (Config, error) {
		return Config{Enabled: false, IntervalSeconds: 1}.normalized(), nil
	}

	w := New(st, WithConfigLoader(cfgLoader))
	require.NoError(t, w.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, w.Stop(context.Background()))
}

func TestWatchdog_StartStopIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	w := New(st, WithConfigLoader(func() (Config, error) {
		return Config{Enabled: false, IntervalSeconds: 1}.normalized(), nil
	}))

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
}
