package orchestrator

// Config drives Orchestrator history bounding, populated via
// core/config.Load.
type Config struct {
	Enabled bool `env:"ORCHESTRATOR_ENABLED" envDefault:"true"`

	// HistoryMaxLen is the number of recent messages retained per project.
	HistoryMaxLen int `env:"HISTORY_MAX_LEN" envDefault:"5"`

	// HistoryMaxProjects bounds the number of tracked projects; the least
	// recently active project is evicted once exceeded.
	HistoryMaxProjects int `env:"HISTORY_MAX_PROJECTS" envDefault:"10000"`

	// HistoryIdleTTLSeconds evicts a project's history after this many
	// seconds of inactivity, independent of the LRU capacity eviction.
	HistoryIdleTTLSeconds int `env:"HISTORY_IDLE_TTL_SECONDS" envDefault:"1800"`

	// HistorySweepIntervalSeconds is how often the idle sweep runs.
	HistorySweepIntervalSeconds int `env:"HISTORY_SWEEP_INTERVAL_SECONDS" envDefault:"60"`
}

func (c Config) normalized() Config {
	if c.HistoryMaxLen < 1 {
		c.HistoryMaxLen = 5
	}
	if c.HistoryMaxProjects < 1 {
		c.HistoryMaxProjects = 10000
	}
	if c.HistoryIdleTTLSeconds < 1 {
		c.HistoryIdleTTLSeconds = 1800
	}
	if c.HistorySweepIntervalSeconds < 1 {
		c.HistorySweepIntervalSeconds = 60
	}
	return c
}
