package dispatch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinri/neural-forge/core/bus"
	"github.com/infinri/neural-forge/core/dispatch"
	"github.com/infinri/neural-forge/core/governance"
	"github.com/infinri/neural-forge/core/store"
	"github.com/infinri/neural-forge/pkg/clock"
	"github.com/infinri/neural-forge/pkg/embedding"
	"github.com/infinri/neural-forge/pkg/idgen"
)

type staticRuleLoader map[string][]governance.Rule

func (l staticRuleLoader) LoadDomain(_ context.Context, domain string) ([]governance.Rule, error) {
	return l[domain], nil
}

func newTestRegistry(t *testing.T) (*dispatch.Registry, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	eng := governance.New(staticRuleLoader{
		"security": {{Domain: "security", Name: "authn-required", Description: "Require auth", Priority: governance.PriorityCritical}},
	}, st, clock.New())
	reg := dispatch.NewRegistry(st, bus.New(), eng,
		dispatch.WithIDGenerator(idgen.NewSequence("id-1", "id-2", "id-3", "id-4", "id-5")),
		dispatch.WithEmbedder(embedding.NewMock()),
	)
	return reg, st
}

func TestRegistry_AddAndGetMemory(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	env := reg.Dispatch(ctx, "add_memory", map[string]any{
		"projectId": "proj-a",
		"content":   "remember this",
	})
	require.Nil(t, env.Error)
	id, _ := env.Result["id"].(string)
	require.NotEmpty(t, id)

	env = reg.Dispatch(ctx, "get_memory", map[string]any{"id": id})
	require.Nil(t, env.Error)
	item, ok := env.Result["item"].(store.MemoryEntry)
	require.True(t, ok)
	assert.Equal(t, "remember this", item.Content)
}

func TestRegistry_GetMemory_MissingIDIsBadRequest(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "get_memory", map[string]any{})
	require.NotNil(t, env.Error)
	assert.Equal(t, dispatch.ErrBadRequest, env.Error.Code)
}

func TestRegistry_GetMemory_UnknownIDIsNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "get_memory", map[string]any{"id": "does-not-exist"})
	require.NotNil(t, env.Error)
	assert.Equal(t, dispatch.ErrNotFound, env.Error.Code)
}

func TestRegistry_EnqueueAndClaimTask(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	env := reg.Dispatch(ctx, "enqueue_task", map[string]any{
		"projectId": "proj-a",
		"payload":   map[string]any{"kind": "build"},
	})
	require.Nil(t, env.Error)

	env = reg.Dispatch(ctx, "get_next_task", map[string]any{"projectId": "proj-a"})
	require.Nil(t, env.Error)
	task, ok := env.Result["task"].(store.Task)
	require.True(t, ok)
	assert.Equal(t, store.TaskInProgress, task.Status)

	env = reg.Dispatch(ctx, "update_task_status", map[string]any{
		"id":     task.ID,
		"status": "done",
	})
	require.Nil(t, env.Error)
}

func TestRegistry_UpdateTaskStatus_RejectsUnknownStatus(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "update_task_status", map[string]any{
		"id":     "whatever",
		"status": "not-a-real-status",
	})
	require.NotNil(t, env.Error)
	assert.Equal(t, dispatch.ErrBadRequest, env.Error.Code)
}

func TestRegistry_SaveDiffAndListRecent(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	env := reg.Dispatch(ctx, "save_diff", map[string]any{
		"projectId": "proj-a",
		"filePath":  "main.go",
		"diff":      "+line",
		"author":    "dev",
	})
	require.Nil(t, env.Error)

	env = reg.Dispatch(ctx, "log_error", map[string]any{
		"projectId": "proj-a",
		"level":     "error",
		"message":   "build failed",
	})
	require.Nil(t, env.Error)

	env = reg.Dispatch(ctx, "list_recent", map[string]any{"projectId": "proj-a"})
	require.Nil(t, env.Error)
	items, ok := env.Result["items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, items, 2)

	kinds := map[string]bool{}
	for _, item := range items {
		kinds[item["kind"].(string)] = true
	}
	assert.True(t, kinds["diff"])
	assert.True(t, kinds["error"])
}

func TestRegistry_LogError_RejectsUnknownLevel(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "log_error", map[string]any{
		"level":   "catastrophic",
		"message": "boom",
	})
	require.NotNil(t, env.Error)
	assert.Equal(t, dispatch.ErrBadRequest, env.Error.Code)
}

func TestRegistry_ActivateGovernance_ForcesActivationBelowThreshold(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "activate_governance", map[string]any{
		"user_message":     "hello there",
		"force_activation": true,
	})
	require.Nil(t, env.Error)
	assert.Equal(t, true, env.Result["governance_activated"])
}

func TestRegistry_ActivateGovernance_RequiresMessage(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "activate_governance", map[string]any{})
	require.NotNil(t, env.Error)
	assert.Equal(t, dispatch.ErrBadRequest, env.Error.Code)
}

func TestRegistry_UnknownToolIsNotFound(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "no_such_tool", map[string]any{})
	require.NotNil(t, env.Error)
	assert.Equal(t, dispatch.ErrNotFound, env.Error.Code)
}

func TestRegistry_Dispatch_StampsEnvelopeMetadata(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "activate_governance", map[string]any{
		"user_message": "hello there",
	})
	assert.NotEmpty(t, env.RequestID)
	assert.Equal(t, dispatch.ServerVersion, env.ServerVersion)
	assert.NotEmpty(t, env.Timestamp)
	assert.True(t, strings.HasSuffix(env.Timestamp, "Z"))
	assert.GreaterOrEqual(t, env.ElapsedMs, int64(0))
}

func TestRegistry_Dispatch_StampsMetadataOnError(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "no_such_tool", map[string]any{})
	assert.NotEmpty(t, env.RequestID)
	assert.NotEmpty(t, env.Timestamp)
}

func TestRegistry_AddMemory_RejectsInvalidProjectID(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "add_memory", map[string]any{
		"projectId": "Invalid Project!",
		"content":   "x",
	})
	require.NotNil(t, env.Error)
	assert.Equal(t, dispatch.ErrBadRequest, env.Error.Code)
}

func TestRegistry_AddMemory_NormalizesProjectID(t *testing.T) {
	reg, _ := newTestRegistry(t)
	env := reg.Dispatch(context.Background(), "add_memory", map[string]any{
		"projectId": "  Proj-A  ",
		"content":   "remember this",
	})
	require.Nil(t, env.Error)
	assert.Equal(t, "proj-a", env.Result["projectId"])
}

func TestAuthenticate_RejectsMissingToken(t *testing.T) {
	cfg := dispatch.AuthConfig{Token: "s3cr3t-token-value"}
	req := httptest.NewRequest(http.MethodPost, "/tools/add_memory", nil)
	assert.Equal(t, dispatch.ErrUnauthorized, dispatch.Authenticate(cfg, req))
}

func TestAuthenticate_RejectsWrongToken(t *testing.T) {
	cfg := dispatch.AuthConfig{Token: "s3cr3t-token-value"}
	req := httptest.NewRequest(http.MethodPost, "/tools/add_memory", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, dispatch.ErrForbidden, dispatch.Authenticate(cfg, req))
}

func TestAuthenticate_AcceptsCorrectToken(t *testing.T) {
	cfg := dispatch.AuthConfig{Token: "s3cr3t-token-value"}
	req := httptest.NewRequest(http.MethodPost, "/tools/add_memory", nil)
	req.Header.Set("Authorization", "Bearer s3cr3t-token-value")
	assert.Equal(t, dispatch.ErrorCode(""), dispatch.Authenticate(cfg, req))
}

func TestAuthenticate_RejectsPlaceholderTokenUnlessInsecureDev(t *testing.T) {
	cfg := dispatch.AuthConfig{Token: "changeme"}
	req := httptest.NewRequest(http.MethodPost, "/tools/add_memory", nil)
	req.Header.Set("Authorization", "Bearer changeme")
	assert.Equal(t, dispatch.ErrUnauthorized, dispatch.Authenticate(cfg, req))

	cfg.AllowInsecureDev = true
	assert.Equal(t, dispatch.ErrorCode(""), dispatch.Authenticate(cfg, req))
}
