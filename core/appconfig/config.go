// Package appconfig aggregates every component's environment-driven
// configuration into one struct loaded once at process startup.
package appconfig

import (
	"time"

	"github.com/infinri/neural-forge/core/dispatch"
	"github.com/infinri/neural-forge/core/orchestrator"
	"github.com/infinri/neural-forge/core/telemetry"
	"github.com/infinri/neural-forge/core/watchdog"
	"github.com/infinri/neural-forge/pkg/embedding"
)

// Config is the root configuration for cmd/server, populated via
// core/config.Load. PG is intentionally excluded: its ConnectionString is
// required, so cmd/server only loads it (in buildStore) once DatabaseURL is
// known to be set.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// DatabaseURL gates whether cmd/server connects a real PostgreSQL
	// pool or falls back to an unconfigured store. Empty means
	// unconfigured.
	DatabaseURL string `env:"DATABASE_URL"`

	GovernanceRulesDir string        `env:"GOVERNANCE_RULES_DIR" envDefault:"internal/governance/rules"`
	GovernanceRulesTTL time.Duration `env:"GOVERNANCE_RULES_TTL" envDefault:"5m"`

	Embedding    embedding.Config
	Orchestrator orchestrator.Config
	Watchdog     watchdog.Config
	Telemetry    telemetry.Config
	Dispatch     dispatch.Config
	Auth         dispatch.AuthConfig
}
