package watchdog

import "github.com/caarlos0/env/v11"

// Action names a stale-task recovery strategy.
type Action string

const (
	ActionRequeue Action = "requeue"
	ActionFail    Action = "fail"
)

// Config is re-parsed from the environment on every loop iteration (not
// through core/config's type-cached Load) so operators can change it
// without restarting the process.
type Config struct {
	Enabled         bool   `env:"TASK_WATCHDOG_ENABLED" envDefault:"false"`
	Action          Action `env:"TASK_WATCHDOG_ACTION" envDefault:"requeue"`
	TTLSeconds      int    `env:"TASK_WATCHDOG_TTL_SECONDS" envDefault:"600"`
	IntervalSeconds int    `env:"TASK_WATCHDOG_INTERVAL_SECONDS" envDefault:"30"`
	BatchLimit      int    `env:"TASK_WATCHDOG_BATCH_LIMIT" envDefault:"100"`
	ProjectID       string `env:"TASK_WATCHDOG_PROJECT_ID"`
}

func (c Config) normalized() Config {
	if c.IntervalSeconds < 1 {
		c.IntervalSeconds = 1
	}
	if c.Action != ActionRequeue && c.Action != ActionFail {
		c.Action = ActionRequeue
	}
	return c
}

func loadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg.normalized(), nil
}
