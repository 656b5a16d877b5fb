// Package config defines the top-level configuration for the foresight graph
// service and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FORESIGHT_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Subgraph SubgraphConfig `toml:"subgraph"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Ingest   IngestConfig   `toml:"ingest"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SubgraphConfig holds the GraphQL indexer endpoint and polling parameters.
type SubgraphConfig struct {
	URL          string   `toml:"url"`
	APIKey       string   `toml:"api_key"`
	PollInterval duration `toml:"poll_interval"`
	BatchSize    int      `toml:"batch_size"`
}

// LedgerConfig holds position-accounting parameters.
type LedgerConfig struct {
	// ResolutionPolicy selects the winner-classification rule applied to
	// newly registered markets: "first_nonzero" or "binary".
	ResolutionPolicy string `toml:"resolution_policy"`
	// DefaultOutcomeSlots is the outcome slot count assumed for markets
	// first seen through a placeholder lookup.
	DefaultOutcomeSlots int `toml:"default_outcome_slots"`
}

// IngestConfig holds ingestion loop parameters.
type IngestConfig struct {
	// CheckpointName keys the ingestion cursor in the checkpoint store, so
	// separate deployments against the same database do not collide.
	CheckpointName string   `toml:"checkpoint_name"`
	LockTTL        duration `toml:"lock_ttl"`
	ArchiveEnabled bool     `toml:"archive_enabled"`
	// ArchiveAfter is how old an audit entry must be before the archiver
	// moves it to object storage.
	ArchiveAfter    duration `toml:"archive_after"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, is required in the X-API-Key header for mutating
	// endpoints.
	APIKey string `toml:"api_key"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "foresight",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "foresight-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Subgraph: SubgraphConfig{
			URL:          "",
			APIKey:       "",
			PollInterval: duration{15 * time.Second},
			BatchSize:    500,
		},
		Ledger: LedgerConfig{
			ResolutionPolicy:    "first_nonzero",
			DefaultOutcomeSlots: 2,
		},
		Ingest: IngestConfig{
			CheckpointName:  "subgraph",
			LockTTL:         duration{60 * time.Second},
			ArchiveEnabled:  false,
			ArchiveAfter:    duration{90 * 24 * time.Hour},
			ArchiveInterval: duration{6 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"ingest": true,
	"serve":  true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validPolicies enumerates the accepted values for Ledger.ResolutionPolicy.
var validPolicies = map[string]bool{
	"first_nonzero": true,
	"binary":        true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: ingest, serve, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3, only required when archival is on.
	if c.Ingest.ArchiveEnabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when ingest.archive_enabled is set")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when ingest.archive_enabled is set")
		}
	}

	// Subgraph, required for ingesting modes.
	needsFeed := c.Mode == "ingest" || c.Mode == "full"
	if needsFeed {
		if c.Subgraph.URL == "" {
			errs = append(errs, "subgraph: url is required for mode "+c.Mode)
		}
		if c.Subgraph.PollInterval.Duration <= 0 {
			errs = append(errs, "subgraph: poll_interval must be > 0")
		}
		if c.Subgraph.BatchSize < 1 || c.Subgraph.BatchSize > 1000 {
			errs = append(errs, fmt.Sprintf("subgraph: batch_size must be 1-1000, got %d", c.Subgraph.BatchSize))
		}
	}

	// Ledger
	if !validPolicies[strings.ToLower(c.Ledger.ResolutionPolicy)] {
		errs = append(errs, fmt.Sprintf("ledger: unknown resolution_policy %q (valid: first_nonzero, binary)", c.Ledger.ResolutionPolicy))
	}
	if c.Ledger.DefaultOutcomeSlots < 2 {
		errs = append(errs, "ledger: default_outcome_slots must be >= 2")
	}

	// Ingest
	if needsFeed {
		if c.Ingest.CheckpointName == "" {
			errs = append(errs, "ingest: checkpoint_name must not be empty")
		}
		if c.Ingest.LockTTL.Duration <= 0 {
			errs = append(errs, "ingest: lock_ttl must be > 0")
		}
		if c.Ingest.ArchiveEnabled {
			if c.Ingest.ArchiveAfter.Duration <= 0 {
				errs = append(errs, "ingest: archive_after must be > 0 when archive_enabled is set")
			}
			if c.Ingest.ArchiveInterval.Duration <= 0 {
				errs = append(errs, "ingest: archive_interval must be > 0 when archive_enabled is set")
			}
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
