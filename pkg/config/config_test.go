package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/positional-indexer/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EncryptionKeyEnv, "s3cret")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "ir_system", cfg.Postgres.Database)
	assert.Equal(t, 8, cfg.Indexer.Workers)
	assert.Equal(t, PolicyFailFast, cfg.Indexer.FailurePolicy)
	assert.Equal(t, PaddingZero, cfg.Indexer.KeyPadding)
	assert.Equal(t, "positional_index", cfg.Indexer.IndexTable)
	assert.Equal(t, "s3cret", cfg.EncryptionKey)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	yaml := `
postgres:
  host: db.internal
  connectTimeout: 2s
indexer:
  workers: 2
  failurePolicy: skip
  keyPadding: ascii-zero
  indexTable: search.positional_index
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(EncryptionKeyEnv, "s3cret")
	t.Setenv("PI_INDEXER_WORKERS", "16")
	t.Setenv("PI_REDIS_ADDR", "cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, 2*time.Second, cfg.Postgres.ConnectTimeout)
	assert.Equal(t, 16, cfg.Indexer.Workers)
	assert.Equal(t, PolicySkip, cfg.Indexer.FailurePolicy)
	assert.Equal(t, PaddingASCIIZero, cfg.Indexer.KeyPadding)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoadSecretNeverComesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("encryptionKey: leaked\n"), 0o600))
	t.Setenv(EncryptionKeyEnv, "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.EncryptionKey)
	assert.ErrorIs(t, cfg.Validate(), apperrors.ErrConfiguration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"no workers":     func(c *Config) { c.Indexer.Workers = 0 },
		"no batch":       func(c *Config) { c.Indexer.BatchSize = -1 },
		"bad policy":     func(c *Config) { c.Indexer.FailurePolicy = "retry" },
		"bad padding":    func(c *Config) { c.Indexer.KeyPadding = "spaces" },
		"sql in table":   func(c *Config) { c.Indexer.IndexTable = "idx; DROP TABLE documents" },
		"leading digit":  func(c *Config) { c.Indexer.SourceTable = "1documents" },
		"empty schema":   func(c *Config) { c.Indexer.SourceTable = ".documents" },
		"kafka, no host": func(c *Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.EncryptionKey = "s3cret"
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), apperrors.ErrConfiguration)
		})
	}
}

func TestDSN(t *testing.T) {
	p := defaultConfig().Postgres
	assert.Equal(t, "host=localhost port=5432 user=postgres password=localdev dbname=ir_system sslmode=disable", p.DSN())
}
