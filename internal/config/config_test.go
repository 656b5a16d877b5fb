package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeTempTOML(t, `
mode = "serve"
log_level = "debug"

[postgres]
host = "db.internal"
database = "graph"

[subgraph]
url = "https://example.com/subgraphs/amm/gn"
poll_interval = "30s"
batch_size = 250
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "graph", cfg.Postgres.Database)
	assert.Equal(t, 30*time.Second, cfg.Subgraph.PollInterval.Duration)
	assert.Equal(t, 250, cfg.Subgraph.BatchSize)

	// Untouched fields keep their defaults.
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "first_nonzero", cfg.Ledger.ResolutionPolicy)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeTempTOML(t, `
mode = "serve"

[redis]
addr = "toml-redis:6379"
`)

	t.Setenv("FORESIGHT_REDIS_ADDR", "env-redis:6380")
	t.Setenv("FORESIGHT_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("FORESIGHT_SUBGRAPH_POLL_INTERVAL", "1m")
	t.Setenv("FORESIGHT_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-redis:6380", cfg.Redis.Addr)
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
	assert.Equal(t, time.Minute, cfg.Subgraph.PollInterval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestValidateServeMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "serve"
	// serve mode does not need a feed endpoint.
	assert.NoError(t, cfg.Validate())
}

func TestValidateIngestRequiresSubgraphURL(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "ingest"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subgraph: url is required")
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "race"
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""
	cfg.Ledger.ResolutionPolicy = "coinflip"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "resolution_policy")
}

func TestValidateArchiveSettings(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "ingest"
	cfg.Subgraph.URL = "https://example.com/gn"
	cfg.Ingest.ArchiveEnabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "pg-secret"
	cfg.Redis.Password = "redis-secret"
	cfg.S3.SecretKey = "s3-secret"
	cfg.Subgraph.APIKey = "subgraph-secret"
	cfg.Server.APIKey = "server-secret"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Subgraph.APIKey)
	assert.Equal(t, "***", red.Server.APIKey)

	// Original is untouched.
	assert.Equal(t, "pg-secret", cfg.Postgres.Password)

	// Empty secrets stay empty rather than becoming "***".
	assert.Empty(t, red.Postgres.DSN)
}
