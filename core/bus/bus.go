package bus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Telemetry lets callers observe publish activity without the bus
// depending on any particular tracing or metrics library. A nil Telemetry
// (the default) makes every call a no-op.
type Telemetry interface {
	// SpanPublish starts a span for one Publish call and returns a function
	// that ends it, recording err if non-nil.
	SpanPublish(ctx context.Context, eventType, projectID string) (context.Context, func(err error))
}

// Counters holds a snapshot of the monotonically increasing per-type
// counters tracked by Bus.
type Counters struct {
	Published     int64
	Consumed      int64
	HandlerErrors int64
}

type typeCounters struct {
	published     atomic.Int64
	consumed      atomic.Int64
	handlerErrors atomic.Int64
}

// Bus is an in-process, typed publish/subscribe dispatcher. The zero value
// is not usable; construct with New.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]Handler
	counters map[string]*typeCounters

	logger    *slog.Logger
	telemetry Telemetry
}

// Option configures a Bus constructed with New.
type Option func(*Bus)

// WithLogger sets the logger used for handler error reporting. Defaults to
// a discarding logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithTelemetry attaches a Telemetry observer.
func WithTelemetry(t Telemetry) Option {
	return func(b *Bus) { b.telemetry = t }
}

// New constructs an empty Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[string][]Handler),
		counters: make(map[string]*typeCounters),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) counterFor(eventType string) *typeCounters {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.counters[eventType]
	if !ok {
		c = &typeCounters{}
		b.counters[eventType] = c
	}
	return c
}

// Subscribe appends handler to the per-type list unless an identical
// handler (by interface identity) is already registered. Safe for
// concurrent use.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, h := range b.handlers[eventType] {
		if h == handler {
			return
		}
	}
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Unsubscribe removes handler from the per-type list if present.
func (b *Bus) Unsubscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[eventType]
	for i, h := range list {
		if h == handler {
			b.handlers[eventType] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish increments the published counter for event.Type, then invokes
// each subscribed handler in registration order, awaiting completion
// before moving to the next. Handler errors are isolated: they increment
// handlerErrors, are logged, and do not stop or propagate to sibling
// handlers or to the caller. Publish itself never returns an error.
func (b *Bus) Publish(ctx context.Context, event Event) {
	counters := b.counterFor(event.Type)
	counters.published.Add(1)

	if b.telemetry != nil {
		var end func(error)
		ctx, end = b.telemetry.SpanPublish(ctx, event.Type, event.ProjectID)
		defer end(nil)
	}

	b.mu.Lock()
	snapshot := make([]Handler, len(b.handlers[event.Type]))
	copy(snapshot, b.handlers[event.Type])
	b.mu.Unlock()

	for _, h := range snapshot {
		if err := safeHandle(h, ctx, event); err != nil {
			counters.handlerErrors.Add(1)
			b.logger.ErrorContext(ctx, "bus handler failed",
				slog.String("event_type", event.Type),
				slog.String("project_id", event.ProjectID),
				slog.String("handler", h.Name()),
				slog.String("error", err.Error()))
			continue
		}
		counters.consumed.Add(1)
	}
}

// safeHandle invokes h.Handle, converting a panic into an error so one
// misbehaving handler cannot take down the publisher's goroutine.
func safeHandle(h Handler, ctx context.Context, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{handler: h.Name(), value: r}
		}
	}()
	return h.Handle(ctx, event)
}

// Snapshot returns the current counters for eventType. Unknown types
// report all zeros.
func (b *Bus) Snapshot(eventType string) Counters {
	b.mu.Lock()
	c, ok := b.counters[eventType]
	b.mu.Unlock()
	if !ok {
		return Counters{}
	}
	return Counters{
		Published:     c.published.Load(),
		Consumed:      c.consumed.Load(),
		HandlerErrors: c.handlerErrors.Load(),
	}
}
