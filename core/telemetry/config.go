package telemetry

// Config selects and tags the telemetry backend, populated via
// core/config.Load.
type Config struct {
	Enabled     bool   `env:"TRACING_ENABLED" envDefault:"false"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"neural-forge"`
	Environment string `env:"APP_ENV" envDefault:"development"`
}

// New returns a no-op Provider unless cfg.Enabled, in which case it
// returns an OpenTelemetry-backed one.
func New(cfg Config) Provider {
	if !cfg.Enabled {
		return NewNoop()
	}
	return NewOTel(OTelOptions{ServiceName: cfg.ServiceName, Environment: cfg.Environment})
}
