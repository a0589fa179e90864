// Command server runs the neural-forge MCP tool-dispatch gateway: it wires
// the governance engine, task queue, project memory, and orchestrator
// behind a set of bearer-authenticated JSON endpoints, one per tool.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/infinri/neural-forge/core/appconfig"
	"github.com/infinri/neural-forge/core/bus"
	"github.com/infinri/neural-forge/core/config"
	"github.com/infinri/neural-forge/core/dispatch"
	"github.com/infinri/neural-forge/core/governance"
	"github.com/infinri/neural-forge/core/logger"
	"github.com/infinri/neural-forge/core/orchestrator"
	"github.com/infinri/neural-forge/core/server"
	"github.com/infinri/neural-forge/core/store"
	"github.com/infinri/neural-forge/core/telemetry"
	"github.com/infinri/neural-forge/core/watchdog"
	"github.com/infinri/neural-forge/integration/database/pg"
	"github.com/infinri/neural-forge/pkg/clock"
	"github.com/infinri/neural-forge/pkg/embedding"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server: exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	var cfg appconfig.Config
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("server: load config: %w", err)
	}

	log := logger.New(logger.WithJSONFormatter())
	slog.SetDefault(log)

	if !cfg.Auth.Valid() {
		return errors.New("server: MCP_TOKEN is missing or a placeholder; set ALLOW_INSECURE_DEV=true to override")
	}
	if cfg.Auth.AllowInsecureDev {
		log.Warn("server: ALLOW_INSECURE_DEV is set; a missing or placeholder MCP_TOKEN is accepted")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := buildStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	emb, err := embedding.New(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("server: build embedder: %w", err)
	}

	clk := clock.New()
	provider := telemetry.New(cfg.Telemetry)

	eventBus := bus.New(
		bus.WithLogger(log),
		bus.WithTelemetry(telemetry.BusAdapter{Provider: provider}),
	)

	rules := governance.NewFileRuleLoader(cfg.GovernanceRulesDir, cfg.GovernanceRulesTTL)
	engine := governance.New(rules, st, clk, governance.WithLogger(log))

	wd := watchdog.New(st,
		watchdog.WithLogger(log),
		watchdog.WithClock(clk),
		watchdog.WithTelemetry(telemetry.WatchdogAdapter{Provider: provider}),
	)

	orch := orchestrator.New(eventBus, engine,
		orchestrator.WithLogger(log),
		orchestrator.WithClock(clk),
		orchestrator.WithConfig(cfg.Orchestrator),
		orchestrator.WithWatchdog(wd),
	)

	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("server: start orchestrator: %w", err)
	}

	registry := dispatch.NewRegistry(st, eventBus, engine,
		dispatch.WithEmbedder(emb),
		dispatch.WithClock(clk),
		dispatch.WithLogger(log),
		dispatch.WithConfig(cfg.Dispatch),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ALIVE"))
	})
	mux.HandleFunc("POST /tools/{tool}", toolHandler(registry, cfg.Auth, log))

	srv := server.New(cfg.HTTPAddr, server.WithLogger(log))

	group, gctx := errgroup.WithContext(ctx)
	group.Go(srv.Run(gctx, mux))

	err = group.Wait()
	if stopErr := orch.Stop(context.Background()); stopErr != nil {
		log.Error("server: failed to stop orchestrator", logger.Error(stopErr))
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func buildStore(ctx context.Context, cfg appconfig.Config, log *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("server: DATABASE_URL not set, running with an unconfigured store")
		return store.NewUnconfiguredPostgresStore(), func() {}, nil
	}

	var pgCfg pg.Config
	if err := config.Load(&pgCfg); err != nil {
		return nil, nil, fmt.Errorf("server: load pg config: %w", err)
	}

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("server: connect postgres: %w", err)
	}

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("server: migrate: %w", err)
	}

	return store.NewPostgresStore(pool), pool.Close, nil
}

func toolHandler(registry *dispatch.Registry, authCfg dispatch.AuthConfig, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tool := r.PathValue("tool")

		if code := dispatch.Authenticate(authCfg, r); code != "" {
			writeEnvelope(w, log, r, registry.ErrorEnvelope(r.Context(), tool, code))
			return
		}

		var req map[string]any
		if r.Body != nil {
			defer r.Body.Close()
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				writeEnvelope(w, log, r, registry.ErrorEnvelope(r.Context(), tool, dispatch.ErrBadRequest))
				return
			}
		}

		envelope := registry.Dispatch(r.Context(), tool, req)
		writeEnvelope(w, log, r, envelope)
	}
}

// writeEnvelope encodes the envelope; its requestId, serverVersion,
// timestamp, and elapsedMs fields are already stamped by the registry.
func writeEnvelope(w http.ResponseWriter, log *slog.Logger, r *http.Request, envelope dispatch.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	if envelope.Error != nil {
		w.WriteHeader(statusForCode(envelope.Error.Code))
	}
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		log.ErrorContext(r.Context(), "server: failed to encode tool response", logger.Error(err))
	}
}

func statusForCode(code dispatch.ErrorCode) int {
	switch code {
	case dispatch.ErrBadRequest:
		// Validation failures are reported through the envelope, not
		// the transport.
		return http.StatusOK
	case dispatch.ErrUnauthorized:
		return http.StatusUnauthorized
	case dispatch.ErrForbidden:
		return http.StatusForbidden
	case dispatch.ErrNotFound:
		return http.StatusNotFound
	case dispatch.ErrDBUnavailable:
		return http.StatusServiceUnavailable
	case dispatch.ErrUnavailable:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
