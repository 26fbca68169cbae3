package eventbus

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds bus configuration for environment-based setup.
// Designed for env parsing with caarlos0/env; a .env file is loaded first
// when present.
type Config struct {
	HistoryLimit    int           `env:"EVENTBUS_HISTORY_LIMIT" envDefault:"100"`
	DefaultTimeout  time.Duration `env:"EVENTBUS_DEFAULT_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"EVENTBUS_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	EnableMetrics   bool          `env:"EVENTBUS_ENABLE_METRICS" envDefault:"true"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:    DefaultHistoryLimit,
		DefaultTimeout:  DefaultTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		EnableMetrics:   true,
	}
}

// LoadConfig parses bus configuration from environment variables, loading a
// .env file first if one exists in the working directory.
func LoadConfig() (Config, error) {
	// Missing .env is fine; explicit env vars still apply.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse eventbus config: %w", err)
	}
	return cfg, nil
}

// NewFromConfig creates a Bus from configuration.
// Additional options override config values.
func NewFromConfig(cfg Config, opts ...Option) *Bus {
	allOpts := append([]Option{
		WithHistoryLimit(cfg.HistoryLimit),
		WithDefaultTimeout(cfg.DefaultTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithMetrics(cfg.EnableMetrics),
	}, opts...)

	return New(allOpts...)
}
