package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	JWTSecret string `env:"JWT_SECRET,required"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY,required"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
	StripeTimeoutS      int    `env:"STRIPE_TIMEOUT_S" envDefault:"5"`
	WebhookToleranceS   int    `env:"WEBHOOK_TOLERANCE_S" envDefault:"300"`

	// Optional fast-path dedup; empty disables Redis entirely.
	RedisAddr      string `env:"REDIS_ADDR"`
	EventDedupTTLH int    `env:"EVENT_DEDUP_TTL_H" envDefault:"24"`

	SweepIntervalS   int `env:"SWEEP_INTERVAL_S" envDefault:"60"`
	SweepPendingAgeS int `env:"SWEEP_PENDING_AGE_S" envDefault:"900"`
	SweepBatchSize   int `env:"SWEEP_BATCH_SIZE" envDefault:"25"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) StripeTimeout() time.Duration {
	return time.Duration(c.StripeTimeoutS) * time.Second
}

func (c *Config) WebhookTolerance() time.Duration {
	return time.Duration(c.WebhookToleranceS) * time.Second
}

func (c *Config) EventDedupTTL() time.Duration {
	return time.Duration(c.EventDedupTTLH) * time.Hour
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalS) * time.Second
}

func (c *Config) SweepPendingAge() time.Duration {
	return time.Duration(c.SweepPendingAgeS) * time.Second
}
