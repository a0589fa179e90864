package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/infinri/neural-forge/core/bus"
)

const (
	eventConversationMessage = "conversation.message"
	eventGovernanceGuidance  = "governance.guidance"
)

func (o *Orchestrator) handleConversation(ctx context.Context, event bus.Event) error {
	if forced, ok := event.Payload["force_error"]; ok && truthy(forced) {
		return ErrForcedForTest
	}

	content, _ := event.Payload["content"].(string)
	role, _ := event.Payload["role"].(string)

	o.logger.InfoContext(ctx, "orchestrator: conversation message",
		slog.String("project_id", event.ProjectID),
		slog.Int("content_len", len(content)))

	o.maybeEmitGovernance(ctx, event, content, role)
	return nil
}

func (o *Orchestrator) maybeEmitGovernance(ctx context.Context, event bus.Event, content, role string) {
	if strings.TrimSpace(content) == "" {
		return
	}

	historySnapshot := o.history.Snapshot(event.ProjectID)

	result, err := o.engine.Activate(ctx, content, historySnapshot, event.ProjectID)
	if err != nil {
		o.logger.ErrorContext(ctx, "orchestrator: governance activation failed",
			slog.String("project_id", event.ProjectID), slog.Any("error", err))
	}

	o.history.Append(event.ProjectID, content)

	if result == nil {
		return
	}

	guidance, err := bus.NewEvent(eventGovernanceGuidance, event.ProjectID, map[string]any{
		"content": result.Guidance,
		"source": map[string]any{
			"type":       event.Type,
			"request_id": event.RequestID,
			"role":       role,
		},
		"tokenRefs": result.TokenRefs,
	})
	if err != nil {
		o.logger.ErrorContext(ctx, "orchestrator: failed to build guidance event", slog.Any("error", err))
		return
	}
	guidance.Traceparent = event.Traceparent
	guidance.RequestID = event.RequestID

	o.bus.Publish(ctx, guidance)
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		return x != "" && x != "false" && x != "0"
	default:
		return v != nil && fmt.Sprintf("%v", v) != "0"
	}
}
