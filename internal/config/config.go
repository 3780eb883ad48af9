// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the ledger server configuration.
type Config struct {
	// Addr is the listen address for the RPC and metrics endpoints.
	Addr string `env:"ADDR" envDefault:":8080"`

	// DBPath is the SQLite database file.
	DBPath string `env:"DB_PATH" envDefault:"./data/ledger.db"`

	// JWTSecret signs and verifies participant tokens.
	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	// TokenTTL is the lifetime of tokens issued by cmd/token.
	TokenTTL time.Duration `env:"TOKEN_TTL" envDefault:"24h"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// PayoutWebhookURL receives withdrawals. Empty means payouts are only logged.
	PayoutWebhookURL string `env:"PAYOUT_WEBHOOK_URL"`

	// PayoutTimeout bounds each webhook call.
	PayoutTimeout time.Duration `env:"PAYOUT_TIMEOUT" envDefault:"10s"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom parses the given variables instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.PayoutTimeout <= 0 {
		return Config{}, fmt.Errorf("PAYOUT_TIMEOUT must be positive, got %s", cfg.PayoutTimeout)
	}
	return cfg, nil
}
