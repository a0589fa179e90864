package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OTelOptions configures NewOTel.
type OTelOptions struct {
	ServiceName string
	Environment string
}

// otelProvider backs Provider with an in-process OpenTelemetry
// MeterProvider and TracerProvider. Exporters are layered on separately by
// whatever wires OTEL_EXPORTER_OTLP_* into the SDK's environment-based
// readers; this constructor stays zero-config so the core never depends on
// a specific exporter module.
type otelProvider struct {
	meter  metric.Meter
	tracer oteltrace.Tracer

	mu         sync.Mutex
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
}

// NewOTel constructs a Provider backed by OpenTelemetry metric and trace
// SDKs, tagged with a service-name resource.
func NewOTel(opts OTelOptions) Provider {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(opts.ServiceName),
		semconv.DeploymentEnvironmentKey.String(opts.Environment),
	)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	return &otelProvider{
		meter:      mp.Meter(opts.ServiceName),
		tracer:     tp.Tracer(opts.ServiceName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
	}
}

func (p *otelProvider) Counter(name string, labelKeys ...string) Counter {
	p.mu.Lock()
	inst, ok := p.counters[name]
	if !ok {
		var err error
		inst, err = p.meter.Int64Counter(name)
		if err != nil {
			p.mu.Unlock()
			return noopCounter{}
		}
		p.counters[name] = inst
	}
	p.mu.Unlock()
	return &otelCounter{c: inst, labelKeys: labelKeys}
}

func (p *otelProvider) Histogram(name string, labelKeys ...string) Histogram {
	p.mu.Lock()
	inst, ok := p.histograms[name]
	if !ok {
		var err error
		inst, err = p.meter.Float64Histogram(name)
		if err != nil {
			p.mu.Unlock()
			return noopHistogram{}
		}
		p.histograms[name] = inst
	}
	p.mu.Unlock()
	return &otelHistogram{h: inst, labelKeys: labelKeys}
}

func (p *otelProvider) Span(ctx context.Context, name string, attrs ...string) (context.Context, func(error)) {
	ctx, span := p.tracer.Start(ctx, name, oteltrace.WithAttributes(toAttributes(attrs)...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
}

type otelCounter struct {
	c         metric.Int64Counter
	labelKeys []string
}

func (c *otelCounter) Inc(ctx context.Context, delta int64, labels ...string) {
	c.c.Add(ctx, delta, metric.WithAttributes(toAttributesKV(c.labelKeys, labels)...))
}

type otelHistogram struct {
	h         metric.Float64Histogram
	labelKeys []string
}

func (h *otelHistogram) Observe(ctx context.Context, value float64, labels ...string) {
	h.h.Record(ctx, value, metric.WithAttributes(toAttributesKV(h.labelKeys, labels)...))
}

// toAttributes pairs alternating key,value strings into attribute.KeyValue.
func toAttributes(kv []string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, attribute.String(kv[i], kv[i+1]))
	}
	return out
}

func toAttributesKV(keys, values []string) []attribute.KeyValue {
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	out := make([]attribute.KeyValue, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, attribute.String(keys[i], values[i]))
	}
	return out
}
