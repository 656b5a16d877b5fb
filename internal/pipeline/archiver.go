package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// ColdStore moves aged records to object storage. Implemented by the S3
// archiver.
type ColdStore interface {
	ArchiveTransactions(ctx context.Context, before time.Time) (int64, error)
	ArchiveTransfers(ctx context.Context, before time.Time) (int64, error)
}

// Archiver periodically moves old ledger data from the database to cold
// storage.
type Archiver struct {
	cold   ColdStore
	maxAge time.Duration
	logger *slog.Logger
}

// NewArchiver creates a new Archiver. maxAge is how old a record must be
// before it is archived.
func NewArchiver(cold ColdStore, maxAge time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		cold:   cold,
		maxAge: maxAge,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Run executes a single archive run. It calculates the cutoff from maxAge and
// archives ledger rows and collateral transfers older than the cutoff.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-a.maxAge)
	a.logger.Info("starting archive run", slog.Time("cutoff", cutoff))

	txCount, err := a.cold.ArchiveTransactions(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving transactions before %v: %w", cutoff, err)
	}

	transferCount, err := a.cold.ArchiveTransfers(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving transfers before %v: %w", cutoff, err)
	}

	a.logger.Info("archive run complete",
		slog.Int64("transactions_archived", txCount),
		slog.Int64("transfers_archived", transferCount),
	)
	return nil
}

// RunLoop runs the archiver on a repeating interval until the context is
// cancelled. A failed run is logged and retried on the next tick.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}
