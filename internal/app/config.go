package app

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is populated from the environment.
type Config struct {
	Addr         string `envconfig:"APP_ADDR" default:":8080"`
	DatabaseURL  string `envconfig:"PG_DSN" required:"true"`
	RedisAddr    string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	GotenbergURL string `envconfig:"GOTENBERG_URL"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	RateLimit       int           `envconfig:"RATE_LIMIT" default:"300"`

	SummaryCacheTTL time.Duration `envconfig:"SUMMARY_CACHE_TTL" default:"60s"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"10"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPFrom     string `envconfig:"SMTP_FROM" default:"documents@crmorbit.local"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("app: load config: %w", err)
	}
	return &cfg, nil
}
