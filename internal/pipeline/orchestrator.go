package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the ingestion goroutines: the feed poller and the
// cold-storage archiver.
type Orchestrator struct {
	poller          *Poller
	archiver        *Archiver // nil disables archival
	archiveInterval time.Duration
	logger          *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. archiver may be nil when
// archival is disabled.
func NewOrchestrator(poller *Poller, archiver *Archiver, archiveInterval time.Duration, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		poller:          poller,
		archiver:        archiver,
		archiveInterval: archiveInterval,
		logger:          logger,
	}
}

// Run starts the sub-pipelines as concurrent goroutines using an errgroup.
// Each goroutine respects ctx cancellation. If any goroutine returns a
// non-context error, the errgroup cancels the shared context and Run returns
// that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.logger.Info("starting feed poller loop")
		err := o.poller.RunLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("feed poller: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			o.logger.Info("starting archiver loop")
			err := o.archiver.RunLoop(ctx, o.archiveInterval)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
