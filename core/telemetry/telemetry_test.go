package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infinri/neural-forge/core/bus"
	"github.com/infinri/neural-forge/core/telemetry"
	"github.com/infinri/neural-forge/core/watchdog"
)

func TestNoopProvider_NeverPanics(t *testing.T) {
	p := telemetry.NewNoop()
	ctx, end := p.Span(context.Background(), "x", "k", "v")
	p.Counter("c", "k").Inc(ctx, 1, "v")
	p.Histogram("h", "k").Observe(ctx, 1.0, "v")
	end(nil)
}

func TestNew_DisabledReturnsNoop(t *testing.T) {
	p := telemetry.New(telemetry.Config{Enabled: false})
	assert.NotNil(t, p)
}

func TestBusAdapter_SatisfiesBusTelemetry(t *testing.T) {
	var _ bus.Telemetry = telemetry.BusAdapter{Provider: telemetry.NewNoop()}
}

func TestWatchdogAdapter_SatisfiesWatchdogTelemetry(t *testing.T) {
	var _ watchdog.Telemetry = telemetry.WatchdogAdapter{Provider: telemetry.NewNoop()}
}

func TestWatchdogAdapter_SpanScanRecordsOutcome(t *testing.T) {
	a := telemetry.WatchdogAdapter{Provider: telemetry.NewNoop()}
	_, end := a.SpanScan(context.Background(), watchdog.ActionRequeue, 60, 10, "p1")
	require.NotNil(t, end)
	end(3, nil)
}
