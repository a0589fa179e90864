package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/infinri/neural-forge/core/bus"
	"github.com/infinri/neural-forge/core/governance"
	"github.com/infinri/neural-forge/pkg/clock"
)

// Watchdog is the subset of the task watchdog's lifecycle the orchestrator
// drives. core/watchdog.Watchdog satisfies this.
type Watchdog interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Orchestrator subscribes to conversation.message events, maintains bounded
// per-project history, and republishes governance guidance.
type Orchestrator struct {
	bus    *bus.Bus
	engine *governance.Engine
	logger *slog.Logger
	clock  clock.Clock
	cfg    Config

	watchdog Watchdog
	history  *historyTracker
	handler  bus.Handler

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// Option configures an Orchestrator constructed with New.
type Option func(*Orchestrator)

// WithLogger sets the logger used for lifecycle and handler logging.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock used for history bookkeeping. Intended for
// tests.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithConfig overrides the default history-bounding configuration.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg.normalized() }
}

// WithWatchdog attaches a Watchdog that Start/Stop launches and
// cancels alongside the orchestrator's own loops.
func WithWatchdog(w Watchdog) Option {
	return func(o *Orchestrator) { o.watchdog = w }
}

// New constructs an Orchestrator bound to b and eng. Start must be called
// before it does anything.
func New(b *bus.Bus, eng *governance.Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		bus:    b,
		engine: eng,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:  clock.New(),
		cfg:    Config{}.normalized(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.history = newHistoryTracker(o.cfg, o.clock)
	o.handler = bus.NewHandlerFunc("orchestrator.conversation", o.handleConversation)
	return o
}

// Start subscribes the conversation handler, launches the idle-history
// sweep, and starts the watchdog if configured. Calling Start on an
// already-running Orchestrator is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return nil
	}

	o.bus.Subscribe(eventConversationMessage, o.handler)

	runCtx, cancel := context.WithCancel(context.Background())
	group, runCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		o.sweepLoop(runCtx)
		return nil
	})

	if o.watchdog != nil {
		if err := o.watchdog.Start(ctx); err != nil {
			cancel()
			o.bus.Unsubscribe(eventConversationMessage, o.handler)
			return err
		}
	}

	o.cancel = cancel
	o.group = group
	o.running = true
	o.logger.InfoContext(ctx, "orchestrator: started")
	return nil
}

// Stop cancels background loops, awaits them, stops the watchdog, and
// unsubscribes the conversation handler. Calling Stop when not running is
// a no-op.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return nil
	}

	o.cancel()
	_ = o.group.Wait()

	var err error
	if o.watchdog != nil {
		err = o.watchdog.Stop(ctx)
	}

	o.bus.Unsubscribe(eventConversationMessage, o.handler)
	o.running = false
	o.logger.InfoContext(ctx, "orchestrator: stopped")
	return err
}

func (o *Orchestrator) sweepLoop(ctx context.Context) {
	interval := time.Duration(o.cfg.HistorySweepIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.history.SweepIdle()
		}
	}
}
