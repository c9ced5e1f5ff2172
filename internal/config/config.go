package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN             string        `env:"DATABASE_DSN,required=true"`
	RabbitMQURL             string        `env:"RABBITMQ_URL,required=true"`
	RedisURL                string        `env:"REDIS_URL,required=true"`
	PublicBaseURL           string        `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
	AdminUser               string        `env:"ADMIN_USER,default=admin"`
	AdminPassword           string        `env:"ADMIN_PASSWORD"`
	CronSecret              string        `env:"CRON_SECRET"`
	DripFeatureEnabled      bool          `env:"DRIP_FEATURE_ENABLED,default=false"`
	DripInterval            time.Duration `env:"DRIP_INTERVAL,default=0s"`
	DonationRateLimitPerMin int           `env:"DONATION_RATE_LIMIT_PER_MIN,default=10"`
	ProviderTimeout         time.Duration `env:"PROVIDER_TIMEOUT,default=10s"`
	WorkerConcurrency       int           `env:"WORKER_CONCURRENCY,default=4"`
	APIPort                 int           `env:"API_PORT,default=8080"`
	LogLevel                string        `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DonationRateLimitPerMin < 0 {
		return fmt.Errorf("DONATION_RATE_LIMIT_PER_MIN must be >= 0")
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be > 0")
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be > 0")
	}
	if c.DripInterval < 0 {
		return fmt.Errorf("DRIP_INTERVAL must be >= 0")
	}
	return nil
}
