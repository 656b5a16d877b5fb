package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mengo6988/foresight-graph/internal/chain"
	"github.com/mengo6988/foresight-graph/internal/domain"
)

// ingestLockKey is the distributed lock key that elects a single ingesting
// instance per deployment.
const ingestLockKey = "ingest"

// EventFeed retrieves ordered protocol events after a checkpoint.
type EventFeed interface {
	FetchEvents(ctx context.Context, after domain.Checkpoint, limit int) ([]chain.Event, error)
}

// Poller drives ingestion: on each tick it takes the ingest lock, reads the
// checkpoint, fetches the next batches from the feed, and hands them to the
// Ingestor until the feed is drained.
type Poller struct {
	feed        EventFeed
	ingestor    *Ingestor
	checkpoints domain.CheckpointStore
	locks       domain.LockManager // nil disables leader election

	checkpointName string
	interval       time.Duration
	batchSize      int
	lockTTL        time.Duration
	logger         *slog.Logger
}

// NewPoller creates a Poller.
func NewPoller(
	feed EventFeed,
	ingestor *Ingestor,
	checkpoints domain.CheckpointStore,
	locks domain.LockManager,
	checkpointName string,
	interval time.Duration,
	batchSize int,
	lockTTL time.Duration,
	logger *slog.Logger,
) *Poller {
	return &Poller{
		feed:           feed,
		ingestor:       ingestor,
		checkpoints:    checkpoints,
		locks:          locks,
		checkpointName: checkpointName,
		interval:       interval,
		batchSize:      batchSize,
		lockTTL:        lockTTL,
		logger:         logger.With(slog.String("component", "poller")),
	}
}

// RunLoop polls the feed on a repeating interval until the context is
// cancelled. A processing error is fatal and stops the loop: the checkpoint
// guarantees nothing past the last good batch was acknowledged, so the
// operator can fix the cause and restart from there.
func (p *Poller) RunLoop(ctx context.Context) error {
	// Run immediately on start.
	if err := p.pollOnce(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := p.pollOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// pollOnce drains the feed once. When another instance holds the ingest lock
// the poll is skipped silently; the holder is making progress.
func (p *Poller) pollOnce(ctx context.Context) error {
	var lock domain.Lock
	if p.locks != nil {
		var err error
		lock, err = p.locks.Acquire(ctx, ingestLockKey, p.lockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			p.logger.DebugContext(ctx, "ingest lock held elsewhere, skipping poll")
			return nil
		}
		if err != nil {
			return fmt.Errorf("pipeline: acquire ingest lock: %w", err)
		}
		defer lock.Release()
	}

	for {
		// The drain is unbounded on backfill, so the lock is renewed every
		// batch; losing it means another instance may already be ingesting,
		// and this one must stop before it double-applies trades.
		if lock != nil {
			if err := lock.Renew(ctx, p.lockTTL); err != nil {
				p.logger.WarnContext(ctx, "ingest lock lost, stopping drain",
					slog.String("error", err.Error()),
				)
				return nil
			}
		}

		cp, err := p.checkpoints.Get(ctx, p.checkpointName)
		if err != nil {
			return fmt.Errorf("pipeline: read checkpoint: %w", err)
		}

		events, err := p.feed.FetchEvents(ctx, cp, p.batchSize)
		if err != nil {
			// Feed errors are transient (indexer lag, network); keep the
			// checkpoint and retry on the next tick.
			p.logger.WarnContext(ctx, "feed fetch failed",
				slog.Uint64("from_block", cp.BlockNumber),
				slog.String("error", err.Error()),
			)
			return nil
		}
		if len(events) == 0 {
			return nil
		}

		if _, err := p.ingestor.ProcessBatch(ctx, events); err != nil {
			return err
		}
	}
}
