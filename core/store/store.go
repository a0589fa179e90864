package store

import (
	"context"
	"time"
)

// SearchParams narrows a substring search over memory content.
type SearchParams struct {
	Query              string
	ProjectID          string
	Limit              int
	IncludeQuarantined bool
}

// SemanticSearchParams narrows a vector similarity search over memory
// embeddings.
type SemanticSearchParams struct {
	QueryEmbedding     []float32
	ProjectID          string
	K                  int
	IncludeQuarantined bool
	Threshold          *float64
}

// TokenMetricFilter narrows a governance token metric query.
type TokenMetricFilter struct {
	TokenIDs       []string
	ProjectID      string
	MinActivations int64
	Limit          int
}

// Store is the full set of typed data-access operations the core
// components require. A nil or unconfigured implementation must return
// ErrUnavailable from every method rather than falling back to an
// in-memory store silently.
type Store interface {
	AddMemory(ctx context.Context, entry MemoryEntry) error
	GetMemory(ctx context.Context, id string) (MemoryEntry, error)
	SearchMemory(ctx context.Context, params SearchParams) ([]MemoryEntry, error)
	SemanticSearchMemory(ctx context.Context, params SemanticSearchParams) ([]MemoryEntry, error)

	EnqueueTask(ctx context.Context, id, projectID string, payload map[string]any) error
	ClaimNextTask(ctx context.Context, projectID string) (Task, bool, error)
	UpdateTaskStatus(ctx context.Context, id string, status TaskStatus, result map[string]any) (bool, error)

	SaveDiff(ctx context.Context, diff Diff) error
	ListRecentDiffs(ctx context.Context, projectID string, limit int) ([]Diff, error)

	LogError(ctx context.Context, rec ErrorRecord) error
	ListRecentErrors(ctx context.Context, projectID string, limit int) ([]ErrorRecord, error)

	CountStaleInProgress(ctx context.Context, ttl time.Duration, projectID string) (int, error)
	ListStaleInProgress(ctx context.Context, ttl time.Duration, limit int, projectID string) ([]Task, error)
	RequeueStaleInProgress(ctx context.Context, ttl time.Duration, limit int, projectID string) (int, error)
	FailStaleInProgress(ctx context.Context, ttl time.Duration, limit int, projectID, reason string) (int, error)

	RecordGovernanceTokenMetric(ctx context.Context, tokenID, projectID string, sample float64, appliedAt time.Time) (GovernanceTokenMetric, error)
	FetchGovernanceTokenMetrics(ctx context.Context, filter TokenMetricFilter) ([]GovernanceTokenMetric, error)
}
