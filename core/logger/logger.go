package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ContextExtractor pulls a single attribute out of a context, returning
// ok=false when nothing relevant is present.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

// Option configures a logger built with New.
type Option func(*options)

type options struct {
	level       slog.Leveler
	json        bool
	output      io.Writer
	attrs       []slog.Attr
	handlerOpts *slog.HandlerOptions
	extractors  []ContextExtractor
	service     string
}

// WithLevel sets the minimum log level.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) { o.level = level }
}

// WithJSONFormatter selects JSON output instead of the default text handler.
func WithJSONFormatter() Option {
	return func(o *options) { o.json = true }
}

// WithOutput sets the destination writer. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithAttr attaches static attributes to every record emitted by the logger.
func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithHandlerOptions overrides the underlying slog.HandlerOptions.
func WithHandlerOptions(h *slog.HandlerOptions) Option {
	return func(o *options) { o.handlerOpts = h }
}

// WithContextExtractors registers functions that pull attributes from a
// context.Context on every *Context logging call.
func WithContextExtractors(fns ...ContextExtractor) Option {
	return func(o *options) { o.extractors = append(o.extractors, fns...) }
}

// WithContextValue registers an extractor that copies ctx.Value(ctxKey)
// into an attribute named attrKey when present and non-empty.
func WithContextValue(ctxKey, attrKey string) Option {
	return func(o *options) {
		o.extractors = append(o.extractors, func(ctx context.Context) (slog.Attr, bool) {
			v := ctx.Value(ctxKey)
			if v == nil {
				return slog.Attr{}, false
			}
			if s, ok := v.(string); ok && s == "" {
				return slog.Attr{}, false
			}
			return slog.Any(attrKey, v), true
		})
	}
}

// WithDevelopment configures a human-readable text logger at Debug level,
// suitable for local development.
func WithDevelopment(service string) Option {
	return func(o *options) {
		o.level = slog.LevelDebug
		o.json = false
		o.service = service
	}
}

// WithProduction configures a JSON logger at Info level on stdout.
func WithProduction(service string) Option {
	return func(o *options) {
		o.level = slog.LevelInfo
		o.json = true
		o.service = service
	}
}

// WithStaging configures a JSON logger at Info level, identical to
// WithProduction but kept distinct so environments can diverge later.
func WithStaging(service string) Option {
	return WithProduction(service)
}

// New builds a *slog.Logger from the given options. With no options it
// returns a text logger at Info level writing to os.Stdout.
func New(opts ...Option) *slog.Logger {
	o := &options{
		level:  slog.LevelInfo,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}

	handlerOpts := o.handlerOpts
	if handlerOpts == nil {
		handlerOpts = &slog.HandlerOptions{Level: o.level}
	}

	var handler slog.Handler
	if o.json {
		handler = slog.NewJSONHandler(o.output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(o.output, handlerOpts)
	}

	if len(o.extractors) > 0 {
		handler = &contextHandler{Handler: handler, extractors: o.extractors}
	}

	log := slog.New(handler)
	if o.service != "" {
		log = log.With(slog.String("service", o.service))
	}
	if len(o.attrs) > 0 {
		args := make([]any, 0, len(o.attrs))
		for _, a := range o.attrs {
			args = append(args, a)
		}
		log = log.With(args...)
	}
	return log
}

// Discard returns a logger that drops every record, for use as a component
// default before options are applied.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// SetAsDefault installs log as the process-wide slog default.
func SetAsDefault(log *slog.Logger) {
	slog.SetDefault(log)
}

// contextHandler decorates every record with attributes pulled from the
// logging context via the configured extractors.
type contextHandler struct {
	slog.Handler
	extractors []ContextExtractor
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, fn := range h.extractors {
		if attr, ok := fn(ctx); ok {
			r.AddAttrs(attr)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs), extractors: h.extractors}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name), extractors: h.extractors}
}
