// Package config loads and validates the indexer configuration from YAML
// files with environment-variable overrides. It provides typed structs for
// every subsystem (Postgres, Kafka, Redis, Indexer, Logging, Metrics, Tracing).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/errors"
	"gopkg.in/yaml.v3"
)

// EncryptionKeyEnv names the environment variable holding the document secret.
const EncryptionKeyEnv = "ENCRYPTION_KEY"

// Failure policies for per-document decryption errors.
const (
	PolicyFailFast = "fail-fast"
	PolicySkip     = "skip"
)

// Key padding modes understood by the legacy key normalizer.
const (
	PaddingZero      = "zero"
	PaddingASCIIZero = "ascii-zero"
)

// Config is the top-level application configuration.
type Config struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing"`

	// EncryptionKey is only ever sourced from the environment.
	EncryptionKey string `yaml:"-"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. Kafka is optional; when
// disabled no notifications are published and watch mode is unavailable.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexRebuild  string `yaml:"indexRebuild"`
	IndexComplete string `yaml:"indexComplete"`
}

// RedisConfig holds the Redis connection used for the run lock and for
// invalidating cached search results.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"poolSize"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	LockKey      string        `yaml:"lockKey"`
	LockTTL      time.Duration `yaml:"lockTTL"`
	CachePattern string        `yaml:"cachePattern"`
}

// IndexerConfig controls the rebuild pipeline.
type IndexerConfig struct {
	Workers       int    `yaml:"workers"`
	BatchSize     int    `yaml:"batchSize"`
	FailurePolicy string `yaml:"failurePolicy"`
	KeyPadding    string `yaml:"keyPadding"`
	SampleSize    int    `yaml:"sampleSize"`
	SourceTable   string `yaml:"sourceTable"`
	IndexTable    string `yaml:"indexTable"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// TracingConfig toggles logging of per-run span trees.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values. Load does not validate; call Validate before starting a run.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate reports configuration problems that must abort startup.
func (c *Config) Validate() error {
	if c.EncryptionKey == "" {
		return apperrors.Newf(apperrors.ErrConfiguration, "%s environment variable is required to decrypt documents", EncryptionKeyEnv)
	}
	if c.Indexer.Workers <= 0 {
		return apperrors.Newf(apperrors.ErrConfiguration, "indexer.workers must be positive, got %d", c.Indexer.Workers)
	}
	if c.Indexer.BatchSize <= 0 {
		return apperrors.Newf(apperrors.ErrConfiguration, "indexer.batchSize must be positive, got %d", c.Indexer.BatchSize)
	}
	switch c.Indexer.FailurePolicy {
	case PolicyFailFast, PolicySkip:
	default:
		return apperrors.Newf(apperrors.ErrConfiguration, "unknown indexer.failurePolicy %q", c.Indexer.FailurePolicy)
	}
	switch c.Indexer.KeyPadding {
	case PaddingZero, PaddingASCIIZero:
	default:
		return apperrors.Newf(apperrors.ErrConfiguration, "unknown indexer.keyPadding %q", c.Indexer.KeyPadding)
	}
	if !isIdentifier(c.Indexer.SourceTable) || !isIdentifier(c.Indexer.IndexTable) {
		return apperrors.Newf(apperrors.ErrConfiguration, "invalid table names %q / %q", c.Indexer.SourceTable, c.Indexer.IndexTable)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return apperrors.New(apperrors.ErrConfiguration, "kafka.brokers is empty")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "ir_system",
			User:            "postgres",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  5 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "positional-indexer",
			Topics: KafkaTopics{
				IndexRebuild:  "index.rebuild",
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     4,
			DialTimeout:  5 * time.Second,
			LockKey:      "positional-index:rebuild-lock",
			LockTTL:      30 * time.Minute,
			CachePattern: "search:*",
		},
		Indexer: IndexerConfig{
			Workers:       8,
			BatchSize:     1000,
			FailurePolicy: PolicyFailFast,
			KeyPadding:    PaddingZero,
			SampleSize:    10,
			SourceTable:   "documents",
			IndexTable:    "positional_index",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Port: 9102,
		},
	}
}

// applyEnvOverrides reads PI_* environment variables and overrides the
// corresponding config fields. The encryption secret comes from
// ENCRYPTION_KEY.
func applyEnvOverrides(cfg *Config) {
	cfg.EncryptionKey = os.Getenv(EncryptionKeyEnv)

	if v := os.Getenv("PI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("PI_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("PI_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("PI_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("PI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("PI_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("PI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
		cfg.Kafka.Enabled = true
	}
	if v := os.Getenv("PI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("PI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PI_INDEXER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.Workers = n
		}
	}
	if v := os.Getenv("PI_INDEXER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Indexer.BatchSize = n
		}
	}
	if v := os.Getenv("PI_INDEXER_FAILURE_POLICY"); v != "" {
		cfg.Indexer.FailurePolicy = v
	}
	if v := os.Getenv("PI_INDEXER_KEY_PADDING"); v != "" {
		cfg.Indexer.KeyPadding = v
	}
	if v := os.Getenv("PI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PI_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
			cfg.Metrics.Enabled = true
		}
	}
}

// isIdentifier reports whether s is a plain SQL identifier, optionally
// schema-qualified. Table names are interpolated into statements.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}
