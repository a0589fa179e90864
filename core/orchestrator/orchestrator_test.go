package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinri/neural-forge/core/bus"
	"github.com/infinri/neural-forge/core/governance"
	"github.com/infinri/neural-forge/core/store"
	"github.com/infinri/neural-forge/pkg/clock"
)

type staticRuleLoader map[string][]governance.Rule

func (l staticRuleLoader) LoadDomain(_ context.Context, domain string) ([]governance.Rule, error) {
	return l[domain], nil
}

func newTestEngine() *governance.Engine {
	loader := staticRuleLoader{
		"security":     {{Domain: "security", Name: "authn-required", Description: "Require authentication on mutating endpoints", Priority: governance.PriorityCritical}},
		"architecture": {{Domain: "architecture", Name: "layering", Description: "Keep layers separate", Priority: governance.PriorityHigh}},
		"performance":  {{Domain: "performance", Name: "cache", Description: "Cache hot paths", Priority: governance.PriorityMedium}},
	}
	return governance.New(loader, store.NewMemoryStore(), clock.New())
}

func TestOrchestrator_IngestEmitsGovernanceGuidance(t *testing.T) {
	b := bus.New()
	eng := newTestEngine()
	o := New(b, eng)

	received := make(chan bus.Event, 1)
	b.Subscribe("governance.guidance", bus.NewHandlerFunc("test-listener", func(_ context.Context, e bus.Event) error {
		received <- e
		return nil
	}))

	require.NoError(t, o.Start(context.Background()))
	defer o.Stop(context.Background())

	evt, err := bus.NewEvent("conversation.message", "p1", map[string]any{
		"content": "Let's build a REST API with authentication",
		"role":    "user",
	})
	require.NoError(t, err)

	b.Publish(context.Background(), evt)

	select {
	case guidance := <-received:
		content, _ := guidance.Payload["content"].(string)
		assert.Contains(t, content, "api")
		assert.Contains(t, content, "security")
		assert.Equal(t, "p1", guidance.ProjectID)
	case <-time.After(time.Second):
		t.Fatal("expected governance.guidance event")
	}
}

func TestOrchestrator_ForceErrorIncrementsHandlerErrors(t *testing.T) {
	b := bus.New()
	eng := newTestEngine()
	o := New(b, eng)

	require.NoError(t, o.Start(context.Background()))
	defer o.Stop(context.Background())

	evt, err := bus.NewEvent("conversation.message", "p1", map[string]any{"force_error": true})
	require.NoError(t, err)

	b.Publish(context.Background(), evt)

	snap := b.Snapshot("conversation.message")
	assert.Equal(t, int64(1), snap.HandlerErrors)
}

func TestOrchestrator_StartStopIdempotent(t *testing.T) {
	b := bus.New()
	eng := newTestEngine()
	o := New(b, eng)

	require.NoError(t, o.Start(context.Background()))
	require.NoError(t, o.Start(context.Background()))
	require.NoError(t, o.Stop(context.Background()))
	require.NoError(t, o.Stop(context.Background()))
}

func TestOrchestrator_EmptyContentSkipsGovernance(t *testing.T) {
	b := bus.New()
	eng := newTestEngine()
	o := New(b, eng)

	require.NoError(t, o.Start(context.Background()))
	defer o.Stop(context.Background())

	received := make(chan bus.Event, 1)
	b.Subscribe("governance.guidance", bus.NewHandlerFunc("test-listener", func(_ context.Context, e bus.Event) error {
		received <- e
		return nil
	}))

	evt, err := bus.NewEvent("conversation.message", "p1", map[string]any{"content": "   "})
	require.NoError(t, err)
	b.Publish(context.Background(), evt)

	select {
	case <-received:
		t.Fatal("expected no governance.guidance event for blank content")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHistoryTracker_BoundsAndIdleSweep(t *testing.T) {
	mockClock := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tracker := newHistoryTracker(Config{HistoryMaxLen: 2, HistoryMaxProjects: 10, HistoryIdleTTLSeconds: 10, HistorySweepIntervalSeconds: 1}.normalized(), mockClock)

	tracker.Append("p1", "a")
	tracker.Append("p1", "b")
	tracker.Append("p1", "c")

	assert.Equal(t, []string{"b", "c"}, tracker.Snapshot("p1"))

	mockClock.Advance(20 * time.Second)
	tracker.SweepIdle()

	assert.Nil(t, tracker.Snapshot("p1"))
}

func TestHistoryTracker_SweepIdleDoesNotReorderRecency(t *testing.T) {
	mockClock := clock.NewMock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	tracker := newHistoryTracker(Config{HistoryMaxLen: 2, HistoryMaxProjects: 2, HistoryIdleTTLSeconds: 3600, HistorySweepIntervalSeconds: 1}.normalized(), mockClock)

	tracker.Append("older-project", "a")
	mockClock.Advance(time.Second)
	tracker.Append("newer-project", "b")

	// Neither project is past idleTTL, so this sweep should only observe
	// recency, never mutate it.
	tracker.SweepIdle()

	// Pushes the LRU tracker over its two-project capacity; the true LRU
	// entry (older-project) must be evicted, not newer-project.
	tracker.Append("evictor-project", "c")

	assert.Nil(t, tracker.Snapshot("older-project"))
	assert.Equal(t, []string{"b"}, tracker.Snapshot("newer-project"))
}
