// Package telemetry adapts the core components' counters, histograms, and
// spans onto OpenTelemetry, with a no-op implementation used whenever
// tracing and metrics are disabled.
package telemetry

import "context"

// Counter increments a named, labeled counter.
type Counter interface {
	Inc(ctx context.Context, delta int64, labels ...string)
}

// Histogram records an observed value against a named, labeled histogram.
type Histogram interface {
	Observe(ctx context.Context, value float64, labels ...string)
}

// Provider is the minimal metrics/tracing surface the core components
// depend on. It never needs to be type-asserted by callers; every method
// is safe to call at any time.
type Provider interface {
	// Counter returns (creating if necessary) the counter named name with
	// labelKeys as its label dimensions.
	Counter(name string, labelKeys ...string) Counter

	// Histogram returns (creating if necessary) the histogram named name
	// with labelKeys as its label dimensions.
	Histogram(name string, labelKeys ...string) Histogram

	// Span starts a span named name with the given attribute pairs
	// (alternating key, value), returning a context carrying it and a
	// function that ends it, recording err if non-nil.
	Span(ctx context.Context, name string, attrs ...string) (context.Context, func(err error))
}

// Counter names used by the core components, fixed so callers don't
// restate them.
const (
	CounterEventsPublished           = "events_published"
	CounterEventsConsumed            = "events_consumed"
	CounterEventHandlerErrors        = "event_handler_errors"
	CounterOrchestratorHandlerErrors = "orchestrator_handler_errors"
	CounterTaskClaims                = "task_claims"
	CounterTaskUpdates               = "task_updates"
	CounterWatchdogScans             = "watchdog_scans"
	CounterWatchdogActions           = "watchdog_actions"
	CounterWatchdogErrors            = "watchdog_errors"
	CounterMCPRequests               = "mcp_requests"
	CounterMCPErrors                 = "mcp_errors"
	HistogramMCPLatency              = "mcp_latency_seconds"
)

// Span names produced by the core, per the component design.
const (
	SpanEventBusPublish    = "EventBus.publish"
	SpanOrchestratorHandle = "Orchestrator.handle"
	SpanWatchdogScan       = "Watchdog.scan"
	SpanTaskClaim          = "Task.claim"
	SpanTaskUpdateStatus   = "Task.update_status"
)
