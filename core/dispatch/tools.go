package dispatch

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/infinri/neural-forge/core/bus"
	"github.com/infinri/neural-forge/core/store"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 200
	defaultListLimit   = 20
	maxListLimit       = 200
)

func stringField(req map[string]any, key string) string {
	s, _ := req[key].(string)
	return s
}

func boolField(req map[string]any, key string) bool {
	b, _ := req[key].(bool)
	return b
}

func mapField(req map[string]any, key string) map[string]any {
	m, _ := req[key].(map[string]any)
	if m == nil {
		m = map[string]any{}
	}
	return m
}

func intField(req map[string]any, key string, def int) int {
	switch v := req[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// normalizeProjectID enforces the projectId normalization rule on a
// required field, surfacing any violation as a request validation error.
func normalizeProjectID(projectID string) (string, error) {
	norm, err := store.NormalizeProjectID(projectID)
	if err != nil {
		return "", validationErrorf("%v", err)
	}
	return norm, nil
}

// normalizeOptionalProjectID applies the same rule to a projectId used as
// an optional filter, leaving an absent value empty rather than forcing it
// through the required-field check.
func normalizeOptionalProjectID(projectID string) (string, error) {
	if strings.TrimSpace(projectID) == "" {
		return "", nil
	}
	return normalizeProjectID(projectID)
}

// ingestEvent publishes a conversation.message event onto the bus for the
// orchestrator to pick up.
func (r *Registry) ingestEvent(ctx context.Context, req map[string]any) (map[string]any, error) {
	projectID, err := normalizeProjectID(stringField(req, "projectId"))
	if err != nil {
		return nil, err
	}
	content := stringField(req, "content")
	if utf8.RuneCountInString(content) > r.cfg.IngestEventMaxContentChars {
		content = string([]rune(content)[:r.cfg.IngestEventMaxContentChars])
	}

	payload := map[string]any{"content": content}
	if role := stringField(req, "role"); role != "" {
		payload["role"] = role
	}

	evt, err := bus.NewEvent("conversation.message", projectID, payload)
	if err != nil {
		return nil, validationErrorf("%v", err)
	}
	r.bus.Publish(ctx, evt)

	return map[string]any{"status": "ok", "type": "conversation.message", "projectId": projectID}, nil
}

func (r *Registry) addMemory(ctx context.Context, req map[string]any) (map[string]any, error) {
	projectID, err := normalizeProjectID(stringField(req, "projectId"))
	if err != nil {
		return nil, err
	}
	content := stringField(req, "content")
	if content == "" {
		return nil, validationErrorf("content required")
	}

	quarantined := boolField(req, "quarantined")
	entry := store.MemoryEntry{
		ID:          r.ids.New(),
		ProjectID:   projectID,
		Content:     content,
		Metadata:    mapField(req, "metadata"),
		Quarantined: quarantined,
	}

	if r.embedder != nil {
		if vec, err := r.embedder.Embed(ctx, content); err == nil && vec != nil {
			entry.Embedding = vec
		}
	}

	if err := r.store.AddMemory(ctx, entry); err != nil {
		return nil, err
	}
	return map[string]any{"id": entry.ID, "projectId": projectID, "quarantined": quarantined}, nil
}

func (r *Registry) getMemory(ctx context.Context, req map[string]any) (map[string]any, error) {
	id := stringField(req, "id")
	if id == "" {
		return nil, validationErrorf("id required")
	}
	entry, err := r.store.GetMemory(ctx, id)
	if err != nil {
		return nil, err
	}
	return map[string]any{"item": entry}, nil
}

func (r *Registry) searchMemory(ctx context.Context, req map[string]any) (map[string]any, error) {
	limit := clamp(intField(req, "limit", defaultSearchLimit), 1, maxSearchLimit)
	includeQuarantined := boolField(req, "includeQuarantined")
	projectID, err := normalizeOptionalProjectID(stringField(req, "projectId"))
	if err != nil {
		return nil, err
	}

	if stringField(req, "mode") == "semantic" {
		query := stringField(req, "query")
		if query == "" {
			return nil, validationErrorf("query required")
		}
		vec, err := r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		params := store.SemanticSearchParams{
			QueryEmbedding:     vec,
			ProjectID:          projectID,
			K:                  clamp(intField(req, "k", limit), 1, maxSearchLimit),
			IncludeQuarantined: includeQuarantined,
		}
		if threshold, ok := req["threshold"].(float64); ok {
			params.Threshold = &threshold
		}
		items, err := r.store.SemanticSearchMemory(ctx, params)
		if err != nil {
			return nil, err
		}
		return map[string]any{"items": items, "count": len(items)}, nil
	}

	query := stringField(req, "query")
	if query == "" {
		return nil, validationErrorf("query required")
	}
	items, err := r.store.SearchMemory(ctx, store.SearchParams{
		Query:              query,
		ProjectID:          projectID,
		Limit:              limit,
		IncludeQuarantined: includeQuarantined,
	})
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": items, "count": len(items)}, nil
}

func (r *Registry) enqueueTask(ctx context.Context, req map[string]any) (map[string]any, error) {
	projectID, err := normalizeProjectID(stringField(req, "projectId"))
	if err != nil {
		return nil, err
	}
	id := r.ids.New()
	if err := r.store.EnqueueTask(ctx, id, projectID, mapField(req, "payload")); err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "status": string(store.TaskQueued)}, nil
}

func (r *Registry) getNextTask(ctx context.Context, req map[string]any) (map[string]any, error) {
	projectID, err := normalizeOptionalProjectID(stringField(req, "projectId"))
	if err != nil {
		return nil, err
	}
	task, found, err := r.store.ClaimNextTask(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !found {
		return map[string]any{"task": nil}, nil
	}
	return map[string]any{"task": task}, nil
}

func (r *Registry) updateTaskStatus(ctx context.Context, req map[string]any) (map[string]any, error) {
	id := stringField(req, "id")
	status := store.TaskStatus(stringField(req, "status"))
	if id == "" || !status.Valid() {
		return nil, validationErrorf("id and a valid status required")
	}

	found, err := r.store.UpdateTaskStatus(ctx, id, status, mapField(req, "result"))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, store.ErrNotFound
	}
	return map[string]any{"id": id, "status": string(status)}, nil
}

func (r *Registry) saveDiff(ctx context.Context, req map[string]any) (map[string]any, error) {
	projectID, err := normalizeProjectID(stringField(req, "projectId"))
	if err != nil {
		return nil, err
	}
	filePath := stringField(req, "filePath")
	diff := stringField(req, "diff")
	if filePath == "" || diff == "" {
		return nil, validationErrorf("filePath and diff required")
	}

	id := r.ids.New()
	author := stringField(req, "author")
	if err := r.store.SaveDiff(ctx, store.Diff{
		ID: id, ProjectID: projectID, FilePath: filePath, Diff: diff, Author: author,
	}); err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "projectId": projectID, "filePath": filePath, "author": author}, nil
}

func (r *Registry) listRecent(ctx context.Context, req map[string]any) (map[string]any, error) {
	limit := clamp(intField(req, "limit", defaultListLimit), 1, maxListLimit)
	projectID, err := normalizeOptionalProjectID(stringField(req, "projectId"))
	if err != nil {
		return nil, err
	}

	diffs, err := r.store.ListRecentDiffs(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}
	errs, err := r.store.ListRecentErrors(ctx, projectID, limit)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(diffs)+len(errs))
	for _, d := range diffs {
		items = append(items, map[string]any{
			"kind": "diff", "id": d.ID, "projectId": d.ProjectID,
			"filePath": d.FilePath, "createdAt": d.CreatedAt,
		})
	}
	for _, e := range errs {
		items = append(items, map[string]any{
			"kind": "error", "id": e.ID, "projectId": e.ProjectID,
			"level": string(e.Level), "message": e.Message, "createdAt": e.CreatedAt,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		ti, _ := items[i]["createdAt"].(time.Time)
		tj, _ := items[j]["createdAt"].(time.Time)
		return ti.After(tj)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return map[string]any{"items": items, "count": len(items)}, nil
}

func (r *Registry) logError(ctx context.Context, req map[string]any) (map[string]any, error) {
	level := store.ErrorLevel(stringField(req, "level"))
	message := stringField(req, "message")
	if !level.Valid() || message == "" {
		return nil, validationErrorf("a valid level and message required")
	}
	projectID, err := normalizeOptionalProjectID(stringField(req, "projectId"))
	if err != nil {
		return nil, err
	}

	id := r.ids.New()
	if err := r.store.LogError(ctx, store.ErrorRecord{
		ID: id, ProjectID: projectID, Level: level,
		Message: message, Context: mapField(req, "context"),
	}); err != nil {
		return nil, err
	}
	return map[string]any{"id": id, "level": string(level)}, nil
}

func (r *Registry) activateGovernance(ctx context.Context, req map[string]any) (map[string]any, error) {
	message := stringField(req, "user_message")
	if strings.TrimSpace(message) == "" {
		return nil, validationErrorf("user_message required")
	}

	var history []string
	if raw, ok := req["conversation_history"].([]any); ok {
		for _, h := range raw {
			if s, ok := h.(string); ok {
				history = append(history, s)
			}
		}
	}

	projectID, err := store.NormalizeTokenMetricProjectID(stringField(req, "projectId"))
	if err != nil {
		return nil, validationErrorf("%v", err)
	}

	var guidance string
	var activated bool
	if boolField(req, "force_activation") {
		res, err := r.engine.ActivateForced(ctx, message, history, projectID)
		if err != nil {
			return nil, err
		}
		if res != nil {
			activated = true
			guidance = res.Guidance
		}
	} else {
		res, err := r.engine.Activate(ctx, message, history, projectID)
		if err != nil {
			return nil, err
		}
		if res != nil {
			activated = true
			guidance = res.Guidance
		}
	}

	out := map[string]any{"success": true, "governance_activated": activated}
	if activated {
		out["guidance"] = guidance
	}
	return out, nil
}

func (r *Registry) getTokenMetrics(ctx context.Context, req map[string]any) (map[string]any, error) {
	projectID, err := normalizeOptionalProjectID(stringField(req, "projectId"))
	if err != nil {
		return nil, err
	}
	filter := store.TokenMetricFilter{
		ProjectID:      projectID,
		Limit:          clamp(intField(req, "limit", defaultListLimit), 1, maxListLimit),
		MinActivations: int64(intField(req, "minActivations", 0)),
	}
	if raw, ok := req["tokenIds"].([]any); ok {
		for _, t := range raw {
			if s, ok := t.(string); ok {
				filter.TokenIDs = append(filter.TokenIDs, s)
			}
		}
	}

	items, err := r.store.FetchGovernanceTokenMetrics(ctx, filter)
	if err != nil {
		return nil, err
	}
	return map[string]any{"items": items, "count": len(items)}, nil
}
