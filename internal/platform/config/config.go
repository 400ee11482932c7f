// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"donation-ledger/pkg/platform/strings"

	"github.com/caarlos0/env/v11"
)

// Config is the full process configuration. Groups are prefixed, for example
// LEDGER_DATABASE_URL or LEDGER_KAFKA_BROKERS.
type Config struct {
	Server   Server         `envPrefix:"SERVER_"`
	JWT      JWT            `envPrefix:"JWT_"`
	Log      Log            `envPrefix:"LOG_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Kafka    KafkaConfig    `envPrefix:"KAFKA_"`
	Tracing  TracingConfig  `envPrefix:"OTEL_"`
	Ledger   Ledger         `envPrefix:"ENGINE_"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type JWT struct {
	SigningKey string `env:"SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string `env:"ISSUER" envDefault:"donation-ledger"`
	Audience   string `env:"AUDIENCE" envDefault:"donation-ledger-api"`
}

type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// DatabaseConfig selects postgres when URL is set; otherwise the in-memory
// store is used.
type DatabaseConfig struct {
	URL             string        `env:"URL"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS" envDefault:"20"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"30m"`
	Migrate         bool          `env:"MIGRATE" envDefault:"true"`
}

// RedisConfig enables the distributed campaign lock when URL is set.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	LockExpiry   time.Duration `env:"LOCK_EXPIRY" envDefault:"10s"`
}

// KafkaConfig enables the audit outbox relay when Brokers is non-empty.
type KafkaConfig struct {
	Brokers      []string      `env:"BROKERS" envSeparator:","`
	Topic        string        `env:"TOPIC" envDefault:"ledger.audit"`
	ClientID     string        `env:"CLIENT_ID" envDefault:"donation-ledger"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"BATCH_SIZE" envDefault:"100"`
}

// TracingConfig exports engine spans over OTLP/HTTP when Endpoint is set.
type TracingConfig struct {
	Endpoint    string  `env:"ENDPOINT"`
	ServiceName string  `env:"SERVICE_NAME" envDefault:"donation-ledger"`
	SampleRatio float64 `env:"SAMPLE_RATIO" envDefault:"1"`
}

// Ledger tunes the lifecycle engine.
type Ledger struct {
	TxTimeout time.Duration `env:"TX_TIMEOUT" envDefault:"5s"`
}

// Load parses the environment under the LEDGER_ prefix.
func Load() (Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses environment entries from vars instead of the process
// environment when vars is non-nil.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	opts := env.Options{Prefix: "LEDGER_"}
	if vars != nil {
		opts.Environment = vars
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Kafka.Brokers = strings.CleanList(cfg.Kafka.Brokers)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.JWT.SigningKey == "" {
		return errors.New("config: LEDGER_JWT_SIGNING_KEY must not be empty")
	}
	if c.Ledger.TxTimeout <= 0 {
		return errors.New("config: LEDGER_ENGINE_TX_TIMEOUT must be positive")
	}
	if c.Kafka.BatchSize <= 0 {
		return errors.New("config: LEDGER_KAFKA_BATCH_SIZE must be positive")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return errors.New("config: LEDGER_OTEL_SAMPLE_RATIO must be between 0 and 1")
	}
	return nil
}

func (c Config) UsesPostgres() bool { return c.Database.URL != "" }

func (c Config) UsesRedis() bool { return c.Redis.URL != "" }

func (c Config) RelayEnabled() bool { return len(c.Kafka.Brokers) > 0 }

func (c Config) TracingEnabled() bool { return c.Tracing.Endpoint != "" }
