package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/infinri/neural-forge/core/bus"
	"github.com/infinri/neural-forge/core/governance"
	"github.com/infinri/neural-forge/core/store"
	"github.com/infinri/neural-forge/pkg/clock"
	"github.com/infinri/neural-forge/pkg/embedding"
	"github.com/infinri/neural-forge/pkg/idgen"
)

// Config carries the dispatch-layer knobs sourced from the environment
// that aren't owned by another component.
type Config struct {
	IngestEventMaxContentChars int `env:"INGEST_EVENT_MAX_CONTENT_CHARS" envDefault:"100000"`
}

func (c Config) normalized() Config {
	if c.IngestEventMaxContentChars < 1 {
		c.IngestEventMaxContentChars = 100000
	}
	return c
}

// toolFunc handles one tool's validated request and returns its result
// fields or an error already classified by errToCode.
type toolFunc func(ctx context.Context, req map[string]any) (map[string]any, error)

// Registry holds every tool handler and the shared dependencies they call
// into.
type Registry struct {
	store    store.Store
	bus      *bus.Bus
	engine   *governance.Engine
	embedder embedding.Embedder
	ids      idgen.Generator
	clock    clock.Clock
	logger   *slog.Logger
	cfg      Config
	tools    map[string]toolFunc
}

// Option configures a Registry constructed with NewRegistry.
type Option func(*Registry)

// WithEmbedder attaches the Embedder used by search_memory's semantic mode.
func WithEmbedder(e embedding.Embedder) Option {
	return func(r *Registry) {
		if e != nil {
			r.embedder = e
		}
	}
}

// WithIDGenerator overrides the id generator, intended for tests.
func WithIDGenerator(g idgen.Generator) Option {
	return func(r *Registry) {
		if g != nil {
			r.ids = g
		}
	}
}

// WithClock overrides the clock, intended for tests.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithLogger sets the logger used for handler diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConfig overrides dispatch-layer configuration.
func WithConfig(cfg Config) Option {
	return func(r *Registry) { r.cfg = cfg.normalized() }
}

// NewRegistry constructs a Registry with all twelve tool handlers
// registered.
func NewRegistry(st store.Store, b *bus.Bus, eng *governance.Engine, opts ...Option) *Registry {
	r := &Registry{
		store:    st,
		bus:      b,
		engine:   eng,
		embedder: embedding.NewDisabled(),
		ids:      idgen.New(),
		clock:    clock.New(),
		logger:   slog.Default(),
		cfg:      Config{}.normalized(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.tools = map[string]toolFunc{
		"ingest_event":        r.ingestEvent,
		"add_memory":          r.addMemory,
		"get_memory":          r.getMemory,
		"search_memory":       r.searchMemory,
		"enqueue_task":        r.enqueueTask,
		"get_next_task":       r.getNextTask,
		"update_task_status":  r.updateTaskStatus,
		"save_diff":           r.saveDiff,
		"list_recent":         r.listRecent,
		"log_error":           r.logError,
		"activate_governance": r.activateGovernance,
		"get_token_metrics":   r.getTokenMetrics,
	}
	return r
}

// Dispatch looks up tool and invokes it, mapping any error onto the
// envelope's stable taxonomy.
func (r *Registry) Dispatch(ctx context.Context, tool string, req map[string]any) Envelope {
	start := r.clock.Now()

	fn, found := r.tools[tool]
	if !found {
		return r.stamp(ctx, start, fail(tool, ErrNotFound, nil))
	}

	if req == nil {
		req = map[string]any{}
	}

	result, err := fn(ctx, req)
	if err != nil {
		return r.stamp(ctx, start, fail(tool, errToCode(err), err))
	}
	return r.stamp(ctx, start, ok(tool, result))
}

// ErrorEnvelope builds a fully-stamped failure envelope for errors detected
// before a tool handler runs, such as auth rejection or a malformed
// request body, so every response carries the same requestId/
// serverVersion/timestamp/elapsedMs fields as a dispatched one.
func (r *Registry) ErrorEnvelope(ctx context.Context, tool string, code ErrorCode) Envelope {
	start := r.clock.Now()
	return r.stamp(ctx, start, fail(tool, code, nil))
}

// stamp fills in the envelope's request-scoped metadata and logs the
// outcome with its requestId.
func (r *Registry) stamp(ctx context.Context, start time.Time, env Envelope) Envelope {
	env.RequestID = r.ids.New()
	env.ServerVersion = ServerVersion
	env.Timestamp = r.clock.Now().UTC().Format(time.RFC3339)
	env.ElapsedMs = r.clock.Since(start).Milliseconds()

	if env.Error != nil {
		r.logger.ErrorContext(ctx, "dispatch: tool call failed",
			slog.String("request_id", env.RequestID),
			slog.String("tool", env.Tool),
			slog.String("code", string(env.Error.Code)),
			slog.String("message", env.Error.Message))
	} else {
		r.logger.InfoContext(ctx, "dispatch: tool call handled",
			slog.String("request_id", env.RequestID),
			slog.String("tool", env.Tool),
			slog.Int64("elapsed_ms", env.ElapsedMs))
	}

	return env
}
