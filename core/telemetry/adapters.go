package telemetry

import (
	"context"

	"github.com/infinri/neural-forge/core/watchdog"
)

// BusAdapter implements core/bus.Telemetry over a Provider, so the bus
// never depends on this package directly.
type BusAdapter struct {
	Provider Provider
}

func (a BusAdapter) SpanPublish(ctx context.Context, eventType, projectID string) (context.Context, func(err error)) {
	return a.Provider.Span(ctx, SpanEventBusPublish, "evt_type", eventType, "project_id", projectID)
}

// WatchdogAdapter implements core/watchdog.Telemetry over a Provider.
type WatchdogAdapter struct {
	Provider Provider
}

func (a WatchdogAdapter) SpanScan(ctx context.Context, action watchdog.Action, ttlSeconds, limit int, projectID string) (context.Context, func(affected int, err error)) {
	actionStr := string(action)

	ctx, end := a.Provider.Span(ctx, SpanWatchdogScan,
		"action", actionStr,
		"project_id", projectID)

	scans := a.Provider.Counter(CounterWatchdogScans, "action")
	scans.Inc(ctx, 1, actionStr)

	return ctx, func(affected int, err error) {
		outcome := "none"
		if affected > 0 {
			outcome = "ok"
		}
		if err != nil {
			a.Provider.Counter(CounterWatchdogErrors, "action").Inc(ctx, 1, actionStr)
		} else {
			a.Provider.Counter(CounterWatchdogActions, "action", "outcome").Inc(ctx, 1, actionStr, outcome)
		}
		end(err)
	}
}
