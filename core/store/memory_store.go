package store

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/infinri/neural-forge/pkg/clock"
)

// MemoryStore is an in-process Store implementation backed by plain maps,
// guarded by a single mutex. It exists for tests and local development; it
// never returns ErrUnavailable, since it has no external dependency to
// lose.
type MemoryStore struct {
	mu sync.Mutex

	memories map[string]MemoryEntry
	tasks    map[string]*Task
	diffs    []Diff
	errs     []ErrorRecord
	metrics  map[string]GovernanceTokenMetric

	clock clock.Clock
}

// NewMemoryStore constructs an empty MemoryStore using the system clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(clock.New())
}

// NewMemoryStoreWithClock constructs an empty MemoryStore using c for all
// timestamps, so tests can control staleness deterministically.
func NewMemoryStoreWithClock(c clock.Clock) *MemoryStore {
	return &MemoryStore{
		memories: make(map[string]MemoryEntry),
		tasks:    make(map[string]*Task),
		metrics:  make(map[string]GovernanceTokenMetric),
		clock:    c,
	}
}

func (s *MemoryStore) AddMemory(ctx context.Context, entry MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now()
	}
	s.memories[entry.ID] = entry
	return nil
}

func (s *MemoryStore) GetMemory(ctx context.Context, id string) (MemoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.memories[id]
	if !ok {
		return MemoryEntry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) SearchMemory(ctx context.Context, params SearchParams) ([]MemoryEntry, error) {
	limit := clampLimit(params.Limit, 20, 200)

	s.mu.Lock()
	var matches []MemoryEntry
	for _, e := range s.memories {
		if !params.IncludeQuarantined && e.Quarantined {
			continue
		}
		if params.ProjectID != "" && e.ProjectID != params.ProjectID {
			continue
		}
		if params.Query != "" && !strings.Contains(strings.ToLower(e.Content), strings.ToLower(params.Query)) {
			continue
		}
		matches = append(matches, e)
	}
	s.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryStore) SemanticSearchMemory(ctx context.Context, params SemanticSearchParams) ([]MemoryEntry, error) {
	k := clampLimit(params.K, 10, 200)

	type scored struct {
		entry MemoryEntry
		dist  float64
	}

	s.mu.Lock()
	var candidates []scored
	for _, e := range s.memories {
		if !params.IncludeQuarantined && e.Quarantined {
			continue
		}
		if params.ProjectID != "" && e.ProjectID != params.ProjectID {
			continue
		}
		if len(e.Embedding) == 0 {
			continue
		}
		d := cosineDistance(params.QueryEmbedding, e.Embedding)
		if params.Threshold != nil && d > *params.Threshold {
			continue
		}
		candidates = append(candidates, scored{entry: e, dist: d})
	}
	s.mu.Unlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]MemoryEntry, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry
	}
	return out, nil
}

// cosineDistance returns 1 - cosine similarity between a and b, so 0 means
// identical direction. Vectors of mismatched or zero length are treated as
// maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - cos
}

func (s *MemoryStore) EnqueueTask(ctx context.Context, id, projectID string, payload map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.tasks[id] = &Task{
		ID:        id,
		ProjectID: projectID,
		Status:    TaskQueued,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *MemoryStore) ClaimNextTask(ctx context.Context, projectID string) (Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Task
	for _, t := range s.tasks {
		if t.Status != TaskQueued {
			continue
		}
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		if best == nil || t.CreatedAt.Before(best.CreatedAt) {
			best = t
		}
	}
	if best == nil {
		return Task{}, false, nil
	}

	best.Status = TaskInProgress
	best.UpdatedAt = s.clock.Now()
	return *best, true, nil
}

func (s *MemoryStore) UpdateTaskStatus(ctx context.Context, id string, status TaskStatus, result map[string]any) (bool, error) {
	if !status.Valid() {
		return false, ErrInvalidStatus
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false, nil
	}
	t.Status = status
	t.Result = result
	t.UpdatedAt = s.clock.Now()
	return true, nil
}

func (s *MemoryStore) SaveDiff(ctx context.Context, diff Diff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if diff.CreatedAt.IsZero() {
		diff.CreatedAt = s.clock.Now()
	}
	s.diffs = append(s.diffs, diff)
	return nil
}

func (s *MemoryStore) ListRecentDiffs(ctx context.Context, projectID string, limit int) ([]Diff, error) {
	limit = clampLimit(limit, 20, 200)

	s.mu.Lock()
	var matches []Diff
	for _, d := range s.diffs {
		if projectID != "" && d.ProjectID != projectID {
			continue
		}
		matches = append(matches, d)
	}
	s.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryStore) LogError(ctx context.Context, rec ErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock.Now()
	}
	s.errs = append(s.errs, rec)
	return nil
}

func (s *MemoryStore) ListRecentErrors(ctx context.Context, projectID string, limit int) ([]ErrorRecord, error) {
	limit = clampLimit(limit, 20, 200)

	s.mu.Lock()
	var matches []ErrorRecord
	for _, e := range s.errs {
		if projectID != "" && e.ProjectID != projectID {
			continue
		}
		matches = append(matches, e)
	}
	s.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryStore) staleTasks(ttl time.Duration, projectID string) []*Task {
	now := s.clock.Now()
	var stale []*Task
	for _, t := range s.tasks {
		if t.Status != TaskInProgress {
			continue
		}
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		if now.Sub(t.UpdatedAt) >= ttl {
			stale = append(stale, t)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	return stale
}

func (s *MemoryStore) CountStaleInProgress(ctx context.Context, ttl time.Duration, projectID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.staleTasks(ttl, projectID)), nil
}

func (s *MemoryStore) ListStaleInProgress(ctx context.Context, ttl time.Duration, limit int, projectID string) ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stale := s.staleTasks(ttl, projectID)
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	out := make([]Task, len(stale))
	for i, t := range stale {
		out[i] = *t
	}
	return out, nil
}

func (s *MemoryStore) RequeueStaleInProgress(ctx context.Context, ttl time.Duration, limit int, projectID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stale := s.staleTasks(ttl, projectID)
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	now := s.clock.Now()
	for _, t := range stale {
		t.Status = TaskQueued
		t.UpdatedAt = now
	}
	return len(stale), nil
}

func (s *MemoryStore) FailStaleInProgress(ctx context.Context, ttl time.Duration, limit int, projectID, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stale := s.staleTasks(ttl, projectID)
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}
	now := s.clock.Now()
	for _, t := range stale {
		t.Status = TaskFailed
		t.UpdatedAt = now
		t.Result = map[string]any{
			"error": reason,
			"watchdog": map[string]any{
				"ttlSeconds": ttl.Seconds(),
				"failedAt":   now,
			},
		}
	}
	return len(stale), nil
}

func (s *MemoryStore) RecordGovernanceTokenMetric(ctx context.Context, tokenID, projectID string, sample float64, appliedAt time.Time) (GovernanceTokenMetric, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenID + "::" + projectID
	now := s.clock.Now()

	existing, ok := s.metrics[key]
	if !ok {
		m := GovernanceTokenMetric{
			TokenID:            tokenID,
			ProjectID:          projectID,
			ActivationCount:    1,
			EffectivenessScore: sample,
			LastAppliedAt:      appliedAt,
			CreatedAt:          now,
			UpdatedAt:          appliedAt,
		}
		s.metrics[key] = m
		return m, nil
	}

	newCount := existing.ActivationCount + 1
	existing.EffectivenessScore = (existing.EffectivenessScore*float64(existing.ActivationCount) + sample) / float64(newCount)
	existing.ActivationCount = newCount
	if appliedAt.After(existing.LastAppliedAt) {
		existing.LastAppliedAt = appliedAt
	}
	existing.UpdatedAt = appliedAt
	s.metrics[key] = existing
	return existing, nil
}

func (s *MemoryStore) FetchGovernanceTokenMetrics(ctx context.Context, filter TokenMetricFilter) ([]GovernanceTokenMetric, error) {
	limit := clampLimit(filter.Limit, 20, 200)

	wanted := make(map[string]bool, len(filter.TokenIDs))
	for _, id := range filter.TokenIDs {
		wanted[id] = true
	}

	s.mu.Lock()
	var matches []GovernanceTokenMetric
	for _, m := range s.metrics {
		if len(wanted) > 0 && !wanted[m.TokenID] {
			continue
		}
		if filter.ProjectID != "" && m.ProjectID != filter.ProjectID {
			continue
		}
		if m.ActivationCount < filter.MinActivations {
			continue
		}
		matches = append(matches, m)
	}
	s.mu.Unlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].ActivationCount != matches[j].ActivationCount {
			return matches[i].ActivationCount > matches[j].ActivationCount
		}
		return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func clampLimit(v, def, max int) int {
	if v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}
