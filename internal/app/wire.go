package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/mengo6988/foresight-graph/internal/blob/s3"
	"github.com/mengo6988/foresight-graph/internal/cache/redis"
	"github.com/mengo6988/foresight-graph/internal/config"
	"github.com/mengo6988/foresight-graph/internal/domain"
	"github.com/mengo6988/foresight-graph/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Clients, kept for health probes.
	PG    *postgres.Client
	Redis *redis.Client

	// Stores
	Markets     domain.MarketStore
	Positions   domain.PositionStore
	Txs         domain.UserTransactionStore
	Transfers   domain.TransferStore
	Audit       domain.AuditStore
	Checkpoints domain.CheckpointStore

	// Redis-backed infrastructure
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	EventBus    *redis.EventBus

	// Blob storage, nil unless archival is enabled.
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Cold       *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PG = pgClient
	deps.Markets = postgres.NewMarketStore(pool)
	deps.Positions = postgres.NewPositionStore(pool)
	deps.Txs = postgres.NewTransactionStore(pool)
	deps.Transfers = postgres.NewTransferStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)
	deps.Checkpoints = postgres.NewCheckpointStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.EventBus = redis.NewEventBus(redisClient)

	// --- S3 blob storage, only when archival is on ---
	if cfg.Ingest.ArchiveEnabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Cold = s3blob.NewArchiver(deps.BlobWriter, deps.Txs, deps.Transfers, deps.Audit)
	}

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("archive_enabled", cfg.Ingest.ArchiveEnabled),
	)
	return deps, cleanup, nil
}
