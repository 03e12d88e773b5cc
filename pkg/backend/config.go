package backend

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries the backend tunables. Everything has a sensible default;
// the env overrides exist for tests and sovereign-cloud endpoints.
type Config struct {
	ManagementURL  string        `env:"PIM_ARM_URL" envDefault:"https://management.azure.com"`
	GraphURL       string        `env:"PIM_GRAPH_URL" envDefault:"https://graph.microsoft.com"`
	RetryAttempts  uint64        `env:"PIM_RETRY_ATTEMPTS" envDefault:"10"`
	RetryInterval  time.Duration `env:"PIM_RETRY_INTERVAL" envDefault:"1s"`
	RequestTimeout time.Duration `env:"PIM_REQUEST_TIMEOUT" envDefault:"1m"`
}

func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("could not parse backend configuration: %w", err)
	}
	return cfg, nil
}
