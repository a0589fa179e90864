package config

import (
	"fmt"
	"os"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once

	cacheMu sync.Mutex
	cache   = map[reflect.Type]any{}
)

// loadDotenv loads a .env file from the working directory exactly once. A
// missing file is not an error; real environment variables always take
// precedence over file contents.
func loadDotenv() {
	dotenvOnce.Do(func() {
		if _, err := os.Stat(".env"); err == nil {
			_ = godotenv.Load()
		}
	})
}

// Load parses environment variables into cfg using struct tags, caching the
// result per concrete type so repeated calls return the same value without
// re-reading the environment.
func Load[T any](cfg *T) error {
	loadDotenv()

	t := reflect.TypeOf(*cfg)

	cacheMu.Lock()
	if cached, ok := cache[t]; ok {
		cacheMu.Unlock()
		*cfg = *cached.(*T)
		return nil
	}
	cacheMu.Unlock()

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", t, err)
	}

	cacheMu.Lock()
	cache[t] = cfg
	cacheMu.Unlock()

	return nil
}

// MustLoad behaves like Load but panics on error, intended for use during
// process startup before any logger is available.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Reset clears the cache. Intended for tests that need to reload
// configuration after mutating environment variables.
func Reset() {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cache = map[reflect.Type]any{}
}
