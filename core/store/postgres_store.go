package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/infinri/neural-forge/integration/database/pg"
)

// PostgresStore implements Store over a pgxpool.Pool. A PostgresStore built
// with a nil pool (via NewUnconfiguredPostgresStore) returns ErrUnavailable
// from every method instead of silently falling back to memory.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an already-connected pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// NewUnconfiguredPostgresStore returns a PostgresStore with no pool, whose
// every method returns ErrUnavailable. Used when DATABASE_URL is unset but
// the rest of the server should still start.
func NewUnconfiguredPostgresStore() *PostgresStore {
	return &PostgresStore{}
}

// querier abstracts over *pgxpool.Pool and pgx.Tx so every method can
// transparently participate in a transaction carried on the context.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgconnCommandTag aliases pgconn.CommandTag to avoid importing pgconn
// solely for this interface's return type.
type pgconnCommandTag = interface {
	RowsAffected() int64
}

func (s *PostgresStore) db(ctx context.Context) (querier, error) {
	if s.pool == nil {
		return nil, ErrUnavailable
	}
	if tx, ok := pg.TxFromContext(ctx); ok {
		return txQuerier{tx}, nil
	}
	return poolQuerier{s.pool}, nil
}

type poolQuerier struct{ pool *pgxpool.Pool }

func (q poolQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error) {
	return q.pool.Exec(ctx, sql, args...)
}
func (q poolQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return q.pool.Query(ctx, sql, args...)
}
func (q poolQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return q.pool.QueryRow(ctx, sql, args...)
}

type txQuerier struct{ tx pgx.Tx }

func (q txQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconnCommandTag, error) {
	return q.tx.Exec(ctx, sql, args...)
}
func (q txQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return q.tx.Query(ctx, sql, args...)
}
func (q txQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return q.tx.QueryRow(ctx, sql, args...)
}

func jsonOf(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

func (s *PostgresStore) AddMemory(ctx context.Context, entry MemoryEntry) error {
	q, err := s.db(ctx)
	if err != nil {
		return err
	}

	meta, err := jsonOf(entry.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}

	const query = `
		INSERT INTO memory_entries (id, project_id, content, metadata, quarantined, group_id, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, COALESCE($8, now()))`

	var embedding any
	if len(entry.Embedding) > 0 {
		embedding = entry.Embedding
	}

	var createdAt any
	if !entry.CreatedAt.IsZero() {
		createdAt = entry.CreatedAt
	}

	_, err = q.Exec(ctx, query, entry.ID, entry.ProjectID, entry.Content, meta, entry.Quarantined, entry.GroupID, embedding, createdAt)
	return err
}

func (s *PostgresStore) GetMemory(ctx context.Context, id string) (MemoryEntry, error) {
	q, err := s.db(ctx)
	if err != nil {
		return MemoryEntry{}, err
	}

	const query = `
		SELECT id, project_id, content, metadata, quarantined, COALESCE(group_id, ''), embedding, created_at
		FROM memory_entries WHERE id = $1`

	row := q.QueryRow(ctx, query, id)
	entry, err := scanMemoryEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return MemoryEntry{}, ErrNotFound
	}
	return entry, err
}

func scanMemoryEntry(row pgx.Row) (MemoryEntry, error) {
	var e MemoryEntry
	var meta []byte
	var embedding []float32
	if err := row.Scan(&e.ID, &e.ProjectID, &e.Content, &meta, &e.Quarantined, &e.GroupID, &embedding, &e.CreatedAt); err != nil {
		return MemoryEntry{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return MemoryEntry{}, fmt.Errorf("store: unmarshal metadata: %w", err)
		}
	}
	e.Embedding = embedding
	return e, nil
}

func (s *PostgresStore) SearchMemory(ctx context.Context, params SearchParams) ([]MemoryEntry, error) {
	q, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	limit := clampLimit(params.Limit, 20, 200)

	const query = `
		SELECT id, project_id, content, metadata, quarantined, COALESCE(group_id, ''), embedding, created_at
		FROM memory_entries
		WHERE ($1 = '' OR project_id = $1)
		  AND ($2 OR NOT quarantined)
		  AND ($3 = '' OR content ILIKE '%' || $3 || '%')
		ORDER BY created_at DESC
		LIMIT $4`

	rows, err := q.Query(ctx, query, params.ProjectID, params.IncludeQuarantined, params.Query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MemoryEntry
	for rows.Next() {
		e, err := scanMemoryEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SemanticSearchMemory(ctx context.Context, params SemanticSearchParams) ([]MemoryEntry, error) {
	q, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	k := clampLimit(params.K, 10, 200)
	threshold := 2.0
	if params.Threshold != nil {
		threshold = *params.Threshold
	}

	candidates, err := s.fetchEmbedded(ctx, q, params.ProjectID, params.IncludeQuarantined)
	if err != nil {
		return nil, err
	}

	type scored struct {
		entry MemoryEntry
		dist  float64
	}
	var scoredEntries []scored
	for _, e := range candidates {
		d := cosineDistance(params.QueryEmbedding, e.Embedding)
		if d > threshold {
			continue
		}
		scoredEntries = append(scoredEntries, scored{entry: e, dist: d})
	}

	sort.Slice(scoredEntries, func(i, j int) bool { return scoredEntries[i].dist < scoredEntries[j].dist })
	if len(scoredEntries) > k {
		scoredEntries = scoredEntries[:k]
	}

	out := make([]MemoryEntry, len(scoredEntries))
	for i, sc := range scoredEntries {
		out[i] = sc.entry
	}
	return out, nil
}

func (s *PostgresStore) fetchEmbedded(ctx context.Context, q querier, projectID string, includeQuarantined bool) ([]MemoryEntry, error) {
	const query = `
		SELECT id, project_id, content, metadata, quarantined, COALESCE(group_id, ''), embedding, created_at
		FROM memory_entries
		WHERE embedding IS NOT NULL
		  AND ($1 = '' OR project_id = $1)
		  AND ($2 OR NOT quarantined)`

	rows, err := q.Query(ctx, query, projectID, includeQuarantined)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MemoryEntry
	for rows.Next() {
		e, err := scanMemoryEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) EnqueueTask(ctx context.Context, id, projectID string, payload map[string]any) error {
	q, err := s.db(ctx)
	if err != nil {
		return err
	}

	p, err := jsonOf(payload)
	if err != nil {
		return fmt.Errorf("store: marshal payload: %w", err)
	}

	const query = `
		INSERT INTO tasks (id, project_id, status, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())`

	_, err = q.Exec(ctx, query, id, projectID, TaskQueued, p)
	return err
}

func (s *PostgresStore) ClaimNextTask(ctx context.Context, projectID string) (Task, bool, error) {
	if s.pool == nil {
		return Task{}, false, ErrUnavailable
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Task{}, false, err
	}
	defer tx.Rollback(ctx)

	const selectQuery = `
		SELECT id, project_id, status, payload, result, created_at, updated_at
		FROM tasks
		WHERE status = $1 AND ($2 = '' OR project_id = $2)
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	row := tx.QueryRow(ctx, selectQuery, TaskQueued, projectID)
	task, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, err
	}

	const updateQuery = `UPDATE tasks SET status = $1, updated_at = now() WHERE id = $2`
	if _, err := tx.Exec(ctx, updateQuery, TaskInProgress, task.ID); err != nil {
		return Task{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Task{}, false, err
	}

	task.Status = TaskInProgress
	return task, true, nil
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	var payload, result []byte
	if err := row.Scan(&t.ID, &t.ProjectID, &t.Status, &payload, &result, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return Task{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &t.Payload); err != nil {
			return Task{}, fmt.Errorf("store: unmarshal payload: %w", err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &t.Result); err != nil {
			return Task{}, fmt.Errorf("store: unmarshal result: %w", err)
		}
	}
	return t, nil
}

func (s *PostgresStore) UpdateTaskStatus(ctx context.Context, id string, status TaskStatus, result map[string]any) (bool, error) {
	if !status.Valid() {
		return false, ErrInvalidStatus
	}

	q, err := s.db(ctx)
	if err != nil {
		return false, err
	}

	r, err := jsonOf(result)
	if err != nil {
		return false, fmt.Errorf("store: marshal result: %w", err)
	}

	const query = `UPDATE tasks SET status = $1, result = $2, updated_at = now() WHERE id = $3`
	tag, err := q.Exec(ctx, query, status, r, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) SaveDiff(ctx context.Context, diff Diff) error {
	q, err := s.db(ctx)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO diffs (id, project_id, file_path, diff, author, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`

	_, err = q.Exec(ctx, query, diff.ID, diff.ProjectID, diff.FilePath, diff.Diff, diff.Author)
	return err
}

func (s *PostgresStore) ListRecentDiffs(ctx context.Context, projectID string, limit int) ([]Diff, error) {
	q, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	limit = clampLimit(limit, 20, 200)

	const query = `
		SELECT id, project_id, file_path, diff, COALESCE(author, ''), created_at
		FROM diffs
		WHERE $1 = '' OR project_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := q.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Diff
	for rows.Next() {
		var d Diff
		if err := rows.Scan(&d.ID, &d.ProjectID, &d.FilePath, &d.Diff, &d.Author, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LogError(ctx context.Context, rec ErrorRecord) error {
	q, err := s.db(ctx)
	if err != nil {
		return err
	}

	c, err := jsonOf(rec.Context)
	if err != nil {
		return fmt.Errorf("store: marshal context: %w", err)
	}

	const query = `
		INSERT INTO error_records (id, project_id, level, message, context, created_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, now())`

	_, err = q.Exec(ctx, query, rec.ID, rec.ProjectID, rec.Level, rec.Message, c)
	return err
}

func (s *PostgresStore) ListRecentErrors(ctx context.Context, projectID string, limit int) ([]ErrorRecord, error) {
	q, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	limit = clampLimit(limit, 20, 200)

	const query = `
		SELECT id, COALESCE(project_id, ''), level, message, context, created_at
		FROM error_records
		WHERE $1 = '' OR project_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := q.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ErrorRecord
	for rows.Next() {
		var e ErrorRecord
		var ctxJSON []byte
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Level, &e.Message, &ctxJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(ctxJSON) > 0 {
			if err := json.Unmarshal(ctxJSON, &e.Context); err != nil {
				return nil, fmt.Errorf("store: unmarshal error context: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountStaleInProgress(ctx context.Context, ttl time.Duration, projectID string) (int, error) {
	q, err := s.db(ctx)
	if err != nil {
		return 0, err
	}

	const query = `
		SELECT count(*) FROM tasks
		WHERE status = $1 AND updated_at <= now() - $2::interval AND ($3 = '' OR project_id = $3)`

	var n int
	err = q.QueryRow(ctx, query, TaskInProgress, fmt.Sprintf("%d seconds", int64(ttl.Seconds())), projectID).Scan(&n)
	return n, err
}

func (s *PostgresStore) ListStaleInProgress(ctx context.Context, ttl time.Duration, limit int, projectID string) ([]Task, error) {
	q, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	limit = clampLimit(limit, 100, 1000)

	const query = `
		SELECT id, project_id, status, payload, result, created_at, updated_at
		FROM tasks
		WHERE status = $1 AND updated_at <= now() - $2::interval AND ($3 = '' OR project_id = $3)
		ORDER BY updated_at ASC
		LIMIT $4`

	rows, err := q.Query(ctx, query, TaskInProgress, fmt.Sprintf("%d seconds", int64(ttl.Seconds())), projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RequeueStaleInProgress(ctx context.Context, ttl time.Duration, limit int, projectID string) (int, error) {
	q, err := s.db(ctx)
	if err != nil {
		return 0, err
	}

	limit = clampLimit(limit, 100, 1000)

	const query = `
		UPDATE tasks SET status = $1, updated_at = now()
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = $2 AND updated_at <= now() - $3::interval AND ($4 = '' OR project_id = $4)
			ORDER BY updated_at ASC
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)`

	tag, err := q.Exec(ctx, query, TaskQueued, TaskInProgress, fmt.Sprintf("%d seconds", int64(ttl.Seconds())), projectID, limit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) FailStaleInProgress(ctx context.Context, ttl time.Duration, limit int, projectID, reason string) (int, error) {
	q, err := s.db(ctx)
	if err != nil {
		return 0, err
	}

	limit = clampLimit(limit, 100, 1000)

	result, err := json.Marshal(map[string]any{
		"error": reason,
		"watchdog": map[string]any{
			"ttlSeconds": ttl.Seconds(),
		},
	})
	if err != nil {
		return 0, err
	}

	const query = `
		UPDATE tasks SET status = $1, result = $2, updated_at = now()
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = $3 AND updated_at <= now() - $4::interval AND ($5 = '' OR project_id = $5)
			ORDER BY updated_at ASC
			LIMIT $6
			FOR UPDATE SKIP LOCKED
		)`

	tag, err := q.Exec(ctx, query, TaskFailed, result, TaskInProgress, fmt.Sprintf("%d seconds", int64(ttl.Seconds())), projectID, limit)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) RecordGovernanceTokenMetric(ctx context.Context, tokenID, projectID string, sample float64, appliedAt time.Time) (GovernanceTokenMetric, error) {
	q, err := s.db(ctx)
	if err != nil {
		return GovernanceTokenMetric{}, err
	}

	const query = `
		INSERT INTO governance_token_metrics (token_id, project_id, activation_count, effectiveness_score, last_applied_at, created_at, updated_at)
		VALUES ($1, $2, 1, $3, $4, now(), $4)
		ON CONFLICT (token_id, project_id) DO UPDATE SET
			activation_count = governance_token_metrics.activation_count + 1,
			effectiveness_score = (governance_token_metrics.effectiveness_score * governance_token_metrics.activation_count + EXCLUDED.effectiveness_score) / (governance_token_metrics.activation_count + 1),
			last_applied_at = GREATEST(governance_token_metrics.last_applied_at, EXCLUDED.last_applied_at),
			updated_at = EXCLUDED.updated_at
		RETURNING token_id, project_id, activation_count, effectiveness_score, last_applied_at, created_at, updated_at`

	row := q.QueryRow(ctx, query, tokenID, projectID, sample, appliedAt)

	var m GovernanceTokenMetric
	err = row.Scan(&m.TokenID, &m.ProjectID, &m.ActivationCount, &m.EffectivenessScore, &m.LastAppliedAt, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (s *PostgresStore) FetchGovernanceTokenMetrics(ctx context.Context, filter TokenMetricFilter) ([]GovernanceTokenMetric, error) {
	q, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	limit := clampLimit(filter.Limit, 20, 200)

	const query = `
		SELECT token_id, project_id, activation_count, effectiveness_score, last_applied_at, created_at, updated_at
		FROM governance_token_metrics
		WHERE (cardinality($1::text[]) = 0 OR token_id = ANY($1))
		  AND ($2 = '' OR project_id = $2)
		  AND activation_count >= $3
		ORDER BY activation_count DESC, updated_at DESC
		LIMIT $4`

	rows, err := q.Query(ctx, query, filter.TokenIDs, filter.ProjectID, filter.MinActivations, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GovernanceTokenMetric
	for rows.Next() {
		var m GovernanceTokenMetric
		if err := rows.Scan(&m.TokenID, &m.ProjectID, &m.ActivationCount, &m.EffectivenessScore, &m.LastAppliedAt, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
