// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Every field can be set through the
// environment; a .env file in the working directory is loaded first.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"` // json | console

	// Storage. Empty PostgresURL selects the in-memory stores.
	PostgresURL   string        `env:"POSTGRES_URL"`
	ClickHouseURL string        `env:"CLICKHOUSE_URL"` // optional trade archive
	RedisAddr     string        `env:"REDIS_ADDR"`     // optional distributed user lock
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"10s"`

	// Ledger.
	SolanaRPCURL    string        `env:"SOLANA_RPC_URL" envDefault:"https://api.mainnet-beta.solana.com"`
	SolanaWSURL     string        `env:"SOLANA_WS_URL"` // empty disables the confirmation watcher
	LedgerTimeout   time.Duration `env:"LEDGER_TIMEOUT" envDefault:"5s"`
	LedgerRetries   int           `env:"LEDGER_RETRIES" envDefault:"3"`
	MinCommitment   string        `env:"MIN_COMMITMENT" envDefault:"confirmed"`
	StatusCacheSize int64         `env:"STATUS_CACHE_SIZE" envDefault:"10000"`
	StatusCacheTTL  time.Duration `env:"STATUS_CACHE_TTL" envDefault:"1h"`
	WatchMaxWait    time.Duration `env:"WATCH_MAX_WAIT" envDefault:"2m"`

	// Pending sweep.
	SweepCron      string        `env:"SWEEP_CRON" envDefault:"@every 1m"`
	SweepOlderThan time.Duration `env:"SWEEP_OLDER_THAN" envDefault:"30s"`
	SweepBatch     int           `env:"SWEEP_BATCH" envDefault:"100"`

	// Event intake. Empty KafkaBrokers disables the consumer.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"wallet-events"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"wallet-tracker"`

	MetricsNamespace string `env:"METRICS_NAMESPACE" envDefault:"wallet_tracker"`
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	switch c.MinCommitment {
	case "processed", "confirmed", "finalized":
	default:
		return fmt.Errorf("MIN_COMMITMENT must be processed, confirmed or finalized, got %q", c.MinCommitment)
	}
	if c.LedgerTimeout <= 0 {
		return fmt.Errorf("LEDGER_TIMEOUT must be positive, got %s", c.LedgerTimeout)
	}
	if c.SweepBatch <= 0 {
		return fmt.Errorf("SWEEP_BATCH must be positive, got %d", c.SweepBatch)
	}
	return nil
}
