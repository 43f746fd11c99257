package env

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	cenv "github.com/caarlos0/env/v11"
)

// Config is the typed view of the settings the engines read.
type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"prod"`
	AppHost string `env:"APP_HOST" envDefault:"localhost"`
	AppPort string `env:"APP_PORT" envDefault:"4000"`

	DBDriver string `env:"DB_DRIVER" envDefault:"mysql"`

	// TaxPercentage is the single flat rate applied to every invoice.
	TaxPercentage string `env:"BILLING_TAX_PERCENTAGE" envDefault:"20"`
	// DefaultTermsDays applies to unknown payment terms.
	DefaultTermsDays int `env:"BILLING_DEFAULT_TERMS_DAYS" envDefault:"14"`
	// SweepHour is the UTC hour after which the daily billing sweep is queued.
	SweepHour          int           `env:"BILLING_SWEEP_HOUR" envDefault:"2"`
	SweepCheckInterval time.Duration `env:"BILLING_SWEEP_CHECK_INTERVAL" envDefault:"15m"`

	// CleaningDuration is the default slot length offered for a turnover cleaning.
	CleaningDuration time.Duration `env:"SCHEDULING_CLEANING_DURATION" envDefault:"3h"`

	QueueWorkers int `env:"JOB_QUEUE_WORKERS" envDefault:"5"`

	RateLimitMax    int           `env:"API_RATE_LIMIT_MAX" envDefault:"120"`
	RateLimitWindow time.Duration `env:"API_RATE_LIMIT_WINDOW" envDefault:"1m"`
}

var (
	config     *Config
	configOnce sync.Once
)

// ParseConfig builds a Config from the OS environment overlaid with the
// values loaded from .env.
func ParseConfig() (*Config, error) {
	environment := make(map[string]string, len(Env))
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environment[k] = v
		}
	}
	for k, v := range Env {
		environment[k] = v
	}

	var cfg Config
	if err := cenv.ParseWithOptions(&cfg, cenv.Options{Environment: environment}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// GetConfig returns the process-wide Config, parsed once. Invalid values
// panic at startup rather than surfacing mid-request.
func GetConfig() *Config {
	configOnce.Do(func() {
		cfg, err := ParseConfig()
		if err != nil {
			panic(err)
		}
		config = cfg
	})
	return config
}
