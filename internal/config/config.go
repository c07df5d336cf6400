package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

type Config struct {
	Primary     Primary            `koanf:"primary"`
	Server      ServerConfig       `koanf:"server"`
	Database    DatabaseConfig     `koanf:"database"`
	Cache       CacheConfig        `koanf:"cache"`
	Provider    ProviderConfig     `koanf:"provider"`
	Retry       RetryConfig        `koanf:"retry"`
	Logger      LoggerConfig       `koanf:"logger"`
	Worker      WorkerConfig       `koanf:"worker"`
	RateLimiter RateLimiterConfig  `koanf:"rate_limiter"`
	Limits      LimitsConfig       `koanf:"limits"`
	Risk        RiskConfig         `koanf:"risk"`
	Aml         AmlConfig          `koanf:"aml"`
}

type WorkerConfig struct {
	Interval         time.Duration `koanf:"interval" validate:"required"`
	BatchSize        int           `koanf:"batch_size" validate:"required"`
	MaxEventAttempts int           `koanf:"max_event_attempts" validate:"required"`
}

// CacheConfig addresses the Redis instance backing the idempotency gate,
// rate limiter, limits service, and AML history.
type CacheConfig struct {
	Addr     string `koanf:"addr" validate:"required"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// ProviderConfig tunes the HTTP client and resilience envelope wrapping
// every downstream settlement provider call (spec.md §4.12).
type ProviderConfig struct {
	BaseURL          string        `koanf:"base_url" validate:"required"`
	Timeout          time.Duration `koanf:"timeout" validate:"required"`
	MaxAttempts      int           `koanf:"max_attempts" validate:"required"`
	BackoffBase      time.Duration `koanf:"backoff_base" validate:"required"`
	BackoffCap       time.Duration `koanf:"backoff_cap" validate:"required"`
	BreakerThreshold int           `koanf:"breaker_threshold" validate:"required"`
	BreakerRecovery  time.Duration `koanf:"breaker_recovery" validate:"required"`
	BulkheadLimit    int           `koanf:"bulkhead_limit" validate:"required"`
}

// RateLimiterConfig sets the fixed-window bounds enforced across the
// merchant, customer, and account dimensions (spec.md §4.4).
type RateLimiterConfig struct {
	WindowSeconds int `koanf:"window_seconds" validate:"required"`
	MerchantLimit int `koanf:"merchant_limit" validate:"required"`
	CustomerLimit int `koanf:"customer_limit" validate:"required"`
	AccountLimit  int `koanf:"account_limit" validate:"required"`
}

// LimitsConfig controls how long a resolved rail policy stays cached
// before the next admission re-reads it from Postgres.
type LimitsConfig struct {
	PolicyCacheTTL time.Duration `koanf:"policy_cache_ttl" validate:"required"`
}

// RiskConfig holds the review/block score thresholds the risk engine
// compares its additive score against (spec.md §4.5).
type RiskConfig struct {
	ReviewThreshold int `koanf:"review_threshold" validate:"required"`
	BlockThreshold  int `koanf:"block_threshold" validate:"required"`
}

// AmlConfig holds the blocklist and windowed thresholds the AML engine
// evaluates every admission against (spec.md §4.6).
type AmlConfig struct {
	BlocklistDestinations     []string `koanf:"blocklist_destinations"`
	TotalWindowSeconds        int64    `koanf:"total_window_seconds" validate:"required"`
	TotalThresholdAmount      string   `koanf:"total_threshold_amount" validate:"required"`
	StructuringWindowSeconds  int64    `koanf:"structuring_window_seconds" validate:"required"`
	StructuringCountThreshold int      `koanf:"structuring_count_threshold" validate:"required"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

type RetryConfig struct {
	BaseDelay  int32 `koanf:"base_delay"`
	MaxRetries int32 `koanf:"max_retries"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

func LoadConfig() (*Config, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	mainConfig := &Config{}

	err = k.Unmarshal("", mainConfig)
	if err != nil {
		logger.Error("could not unmarshal main config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(mainConfig)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return mainConfig, nil
}
