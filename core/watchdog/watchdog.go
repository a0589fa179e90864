package watchdog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/infinri/neural-forge/core/store"
	"github.com/infinri/neural-forge/pkg/clock"
)

// Telemetry lets callers observe scan activity without the watchdog
// depending on a tracing library directly.
type Telemetry interface {
	// SpanScan starts a span for one iteration and returns a function that
	// ends it with the affected count and error, if any.
	SpanScan(ctx context.Context, action Action, ttlSeconds, limit int, projectID string) (context.Context, func(affected int, err error))
}

// Watchdog runs the stale in_progress task recovery loop.
type Watchdog struct {
	store     store.Store
	clock     clock.Clock
	logger    *slog.Logger
	telemetry Telemetry
	loadCfg   func() (Config, error)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Watchdog constructed with New.
type Option func(*Watchdog)

// WithLogger sets the logger used for scan reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watchdog) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithTelemetry attaches a Telemetry observer.
func WithTelemetry(t Telemetry) Option {
	return func(w *Watchdog) { w.telemetry = t }
}

// WithClock overrides the clock, intended for tests.
func WithClock(c clock.Clock) Option {
	return func(w *Watchdog) { w.clock = c }
}

// WithConfigLoader overrides how config is re-read each iteration,
// intended for tests that don't want to mutate the process environment.
func WithConfigLoader(fn func() (Config, error)) Option {
	return func(w *Watchdog) {
		if fn != nil {
			w.loadCfg = fn
		}
	}
}

// New constructs a Watchdog over st.
func New(st store.Store, opts ...Option) *Watchdog {
	w := &Watchdog{
		store:   st,
		clock:   clock.New(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		loadCfg: loadConfigFromEnv,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the scan loop. Calling Start twice is a no-op.
func (w *Watchdog) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		w.loop(runCtx)
	}()

	w.cancel = cancel
	w.done = done
	w.running = true
	w.logger.InfoContext(ctx, "watchdog: started")
	return nil
}

// Stop cancels the loop and awaits its exit. Calling Stop when not running
// is a no-op.
func (w *Watchdog) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.cancel()
	<-w.done
	w.running = false
	w.logger.InfoContext(ctx, "watchdog: stopped")
	return nil
}

func (w *Watchdog) loop(ctx context.Context) {
	for {
		cfg, err := w.loadCfg()
		if err != nil {
			w.logger.ErrorContext(ctx, "watchdog: failed to load config", slog.Any("error", err))
			cfg = Config{}.normalized()
		}

		if !cfg.Enabled {
			if w.sleep(ctx, time.Duration(cfg.IntervalSeconds)*time.Second) {
				return
			}
			continue
		}

		w.runIteration(ctx, cfg)

		if w.sleep(ctx, time.Duration(cfg.IntervalSeconds)*time.Second) {
			return
		}
	}
}

func (w *Watchdog) runIteration(ctx context.Context, cfg Config) {
	var end func(affected int, err error)
	if w.telemetry != nil {
		ctx, end = w.telemetry.SpanScan(ctx, cfg.Action, cfg.TTLSeconds, cfg.BatchLimit, cfg.ProjectID)
	}

	start := w.clock.Now()
	affected, err := w.runAction(ctx, cfg)
	duration := w.clock.Since(start)

	if end != nil {
		end(affected, err)
	}

	if err != nil {
		w.logger.ErrorContext(ctx, "watchdog: scan failed",
			slog.String("action", string(cfg.Action)), slog.Any("error", err))
		return
	}

	outcome := "none"
	if affected > 0 {
		outcome = "ok"
	}
	w.logger.InfoContext(ctx, "watchdog: scan complete",
		slog.String("action", string(cfg.Action)),
		slog.String("outcome", outcome),
		slog.Int("affected", affected),
		slog.Duration("duration", duration))
}

func (w *Watchdog) runAction(ctx context.Context, cfg Config) (int, error) {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second

	var affected int
	var err error
	switch cfg.Action {
	case ActionFail:
		affected, err = w.store.FailStaleInProgress(ctx, ttl, cfg.BatchLimit, cfg.ProjectID, "ERR.STALE_TASK")
	default:
		affected, err = w.store.RequeueStaleInProgress(ctx, ttl, cfg.BatchLimit, cfg.ProjectID)
	}

	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			return 0, fmt.Errorf("watchdog: store unavailable: %w", err)
		}
		return 0, err
	}
	return affected, nil
}

// sleep waits for d or ctx cancellation, returning true if ctx was
// cancelled.
func (w *Watchdog) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}
