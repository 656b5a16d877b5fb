package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mengo6988/foresight-graph/internal/domain"
	"github.com/mengo6988/foresight-graph/internal/ledger"
	"github.com/mengo6988/foresight-graph/internal/pipeline"
	"github.com/mengo6988/foresight-graph/internal/platform/subgraph"
	"github.com/mengo6988/foresight-graph/internal/server"
	"github.com/mengo6988/foresight-graph/internal/server/handler"
	"github.com/mengo6988/foresight-graph/internal/server/ws"
)

// IngestMode runs the feed poller and archiver without the HTTP API.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startIngestion(ctx, g, deps)
	return g.Wait()
}

// ServeMode runs the read-side HTTP + WebSocket API without ingesting.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs ingestion and the API in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startIngestion(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	return g.Wait()
}

// startIngestion wires the subgraph feed into the ledger and launches the
// pipeline orchestrator on the errgroup.
func (a *App) startIngestion(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	registry := ledger.NewRegistry(deps.Markets, deps.MarketCache, resolutionPolicy(a.cfg.Ledger.ResolutionPolicy), a.logger)
	engine := ledger.NewEngine(deps.Positions, a.logger)
	resolver := ledger.NewResolver(registry, a.logger)

	ingestor := pipeline.NewIngestor(pipeline.IngestorDeps{
		Registry:    registry,
		Engine:      engine,
		Resolver:    resolver,
		Txs:         deps.Txs,
		Transfers:   deps.Transfers,
		Audit:       deps.Audit,
		Checkpoints: deps.Checkpoints,
		Bus:         deps.EventBus,
	}, a.cfg.Ingest.CheckpointName, a.cfg.Ledger.DefaultOutcomeSlots, a.logger)

	feed := subgraph.NewClient(a.cfg.Subgraph.URL, a.cfg.Subgraph.APIKey)
	poller := pipeline.NewPoller(
		feed,
		ingestor,
		deps.Checkpoints,
		deps.LockManager,
		a.cfg.Ingest.CheckpointName,
		a.cfg.Subgraph.PollInterval.Duration,
		a.cfg.Subgraph.BatchSize,
		a.cfg.Ingest.LockTTL.Duration,
		a.logger,
	)

	var archiver *pipeline.Archiver
	if deps.Cold != nil {
		archiver = pipeline.NewArchiver(deps.Cold, a.cfg.Ingest.ArchiveAfter.Duration, a.logger)
	}

	orch := pipeline.NewOrchestrator(poller, archiver, a.cfg.Ingest.ArchiveInterval.Duration, a.logger)
	g.Go(func() error {
		return orch.Run(ctx)
	})
}

// startHTTPServer builds the handler set, the WebSocket hub, and the HTTP
// server, and launches them on the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	health := handler.NewHealthHandler(a.logger)
	health.AddDependency("postgres", deps.PG.Pool().Ping)
	health.AddDependency("redis", deps.Redis.Ping)

	handlers := server.Handlers{
		Health:       health,
		Status:       handler.NewStatusHandler(a.cfg.Mode, a.cfg.Ingest.CheckpointName, deps.Checkpoints, a.logger),
		Markets:      handler.NewMarketHandler(deps.Markets, a.logger),
		Positions:    handler.NewPositionHandler(deps.Positions, a.logger),
		Transactions: handler.NewTransactionHandler(deps.Txs, a.logger),
		Transfers:    handler.NewTransferHandler(deps.Transfers, a.logger),
		Audit:        handler.NewAuditHandler(deps.Audit, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	hub := ws.NewHub(deps.EventBus, []string{
		pipeline.ChannelTrades,
		pipeline.ChannelRedemptions,
		pipeline.ChannelMarkets,
	}, a.cfg.Mode, a.logger)

	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("ws hub: %w", err)
	})

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// resolutionPolicy maps the configured policy name onto the domain constant.
func resolutionPolicy(name string) domain.ResolutionPolicy {
	if name == "binary" {
		return domain.PolicyBinary
	}
	return domain.PolicyFirstNonZero
}
