// Package pipeline turns the ordered on-chain event stream into ledger
// state: it polls the subgraph feed, routes each decoded event to the
// registry, ledger builder, position engine, or audit log, and advances the
// ingestion checkpoint.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mengo6988/foresight-graph/internal/chain"
	"github.com/mengo6988/foresight-graph/internal/domain"
	"github.com/mengo6988/foresight-graph/internal/ledger"
)

// Pub/Sub channels for live consumers.
const (
	ChannelTrades      = "tape:trades"
	ChannelRedemptions = "tape:redemptions"
	ChannelMarkets     = "tape:markets"
)

// Ingestor applies ordered batches of decoded events to the ledger. Events
// within a batch are processed strictly in feed order, which preserves the
// per-market ordering the position accounting depends on.
type Ingestor struct {
	registry    *ledger.Registry
	engine      *ledger.Engine
	resolver    *ledger.Resolver
	txs         domain.UserTransactionStore
	transfers   domain.TransferStore
	audit       domain.AuditStore
	checkpoints domain.CheckpointStore
	bus         domain.EventBus // nil disables live publishing

	checkpointName string
	defaultSlots   int
	logger         *slog.Logger
}

// IngestorDeps bundles the collaborators an Ingestor needs.
type IngestorDeps struct {
	Registry    *ledger.Registry
	Engine      *ledger.Engine
	Resolver    *ledger.Resolver
	Txs         domain.UserTransactionStore
	Transfers   domain.TransferStore
	Audit       domain.AuditStore
	Checkpoints domain.CheckpointStore
	Bus         domain.EventBus
}

// NewIngestor creates an Ingestor. checkpointName keys the ingestion cursor;
// defaultSlots is the outcome count assumed for markets first seen through a
// redemption.
func NewIngestor(deps IngestorDeps, checkpointName string, defaultSlots int, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		registry:       deps.Registry,
		engine:         deps.Engine,
		resolver:       deps.Resolver,
		txs:            deps.Txs,
		transfers:      deps.Transfers,
		audit:          deps.Audit,
		checkpoints:    deps.Checkpoints,
		bus:            deps.Bus,
		checkpointName: checkpointName,
		defaultSlots:   defaultSlots,
		logger:         logger.With(slog.String("component", "ingestor")),
	}
}

// ProcessBatch applies events in order and then persists the checkpoint at
// the last event's position. A failure stops the batch with nothing past the
// previous checkpoint acknowledged; every write is an idempotent upsert, so
// re-processing the same events after a restart converges on the same state.
func (in *Ingestor) ProcessBatch(ctx context.Context, events []chain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	for i, ev := range events {
		if err := in.processEvent(ctx, ev); err != nil {
			l := ev.EventLog()
			return i, fmt.Errorf("pipeline: event %s at %s/%d: %w", ev.Kind(), l.TxHash.Hex(), l.LogIndex, err)
		}
	}

	last := events[len(events)-1].EventLog()
	cp := domain.Checkpoint{BlockNumber: last.BlockNumber, LogIndex: last.LogIndex}
	if err := in.checkpoints.Set(ctx, in.checkpointName, cp); err != nil {
		return len(events), fmt.Errorf("pipeline: advance checkpoint: %w", err)
	}

	in.logger.InfoContext(ctx, "batch processed",
		slog.Int("events", len(events)),
		slog.Uint64("block", last.BlockNumber),
	)
	return len(events), nil
}

func (in *Ingestor) processEvent(ctx context.Context, ev chain.Event) error {
	switch e := ev.(type) {
	case chain.MarketCreation:
		return in.handleCreation(ctx, e)
	case chain.OutcomeTokenTrade:
		return in.handleTrade(ctx, e)
	case chain.PayoutRedemption:
		return in.handleRedemption(ctx, e)
	case chain.ConditionResolution:
		return in.handleResolution(ctx, e)
	case chain.AdminTransferred:
		return in.handleAdmin(ctx, e)
	default:
		return fmt.Errorf("unhandled event kind %s", ev.Kind())
	}
}

func (in *Ingestor) handleCreation(ctx context.Context, ev chain.MarketCreation) error {
	m, err := in.registry.RegisterCreation(ctx, ev)
	if err != nil {
		return err
	}

	detail := map[string]any{
		"creator":          m.Creator,
		"collateral_token": m.CollateralToken,
		"conditions":       m.ConditionIDs,
	}
	if ev.Fee != nil {
		detail["fee"] = ev.Fee.String()
	}
	if ev.Funding != nil {
		detail["funding"] = ev.Funding.String()
	}
	if err := in.recordAudit(ctx, ev.Log, "market.created", m.ID, detail); err != nil {
		return err
	}

	in.publish(ctx, ChannelMarkets, m)
	return nil
}

func (in *Ingestor) handleTrade(ctx context.Context, ev chain.OutcomeTokenTrade) error {
	market, err := in.registry.GetOrCreate(ctx, ev.Address.Hex(), ledger.MarketDefaults{
		CreatedAt:   ev.BlockTimestamp,
		CreatedTx:   ev.TxHash.Hex(),
		Placeholder: true,
	})
	if err != nil {
		return err
	}

	market, err = in.registry.EnsureOutcomeSlots(ctx, market, len(ev.OutcomeTokenAmounts))
	if err != nil {
		return err
	}

	tx := ledger.BuildTrade(market.ID, ev)
	if err := in.txs.Upsert(ctx, tx); err != nil {
		return err
	}

	if _, _, err := in.engine.ApplyTrade(ctx, market, ev); err != nil {
		return err
	}

	if err := in.recordAudit(ctx, ev.Log, "trade", market.ID, map[string]any{
		"transactor": ev.Transactor.Hex(),
		"kind":       string(tx.Kind),
		"collateral": tx.CollateralAmount.String(),
		"tokens":     tx.OutcomeTokenAmount.String(),
	}); err != nil {
		return err
	}

	in.publish(ctx, ChannelTrades, tx)
	return nil
}

func (in *Ingestor) handleRedemption(ctx context.Context, ev chain.PayoutRedemption) error {
	cond := ev.ConditionID.Hex()

	// The redemption is emitted by the conditional-tokens contract, not the
	// AMM, so the market is found through the condition mapping. When no
	// creation event was indexed for the condition, a placeholder market
	// keyed by the emitting contract keeps the ledger referentially intact.
	market, err := in.registry.GetByCondition(ctx, cond)
	if errors.Is(err, domain.ErrNotFound) {
		market, err = in.registry.GetOrCreate(ctx, ev.Address.Hex(), ledger.MarketDefaults{
			CollateralToken: ev.CollateralToken.Hex(),
			ConditionIDs:    []string{cond},
			CreatedAt:       ev.BlockTimestamp,
			CreatedTx:       ev.TxHash.Hex(),
			Placeholder:     true,
		})
		if err == nil {
			market, err = in.registry.EnsureOutcomeSlots(ctx, market, in.defaultSlots)
		}
	}
	if err != nil {
		return err
	}

	tx := ledger.BuildRedemption(market.ID, ev)
	if err := in.txs.Upsert(ctx, tx); err != nil {
		return err
	}

	transfer := ledger.BuildTransfer(ev)
	if err := in.transfers.Upsert(ctx, transfer); err != nil {
		return err
	}

	if err := in.recordAudit(ctx, ev.Log, "redemption", market.ID, map[string]any{
		"redeemer":  ev.Redeemer.Hex(),
		"condition": cond,
		"payout":    ev.Payout.String(),
	}); err != nil {
		return err
	}

	in.publish(ctx, ChannelRedemptions, tx)
	return nil
}

func (in *Ingestor) handleResolution(ctx context.Context, ev chain.ConditionResolution) error {
	market, matched, err := in.resolver.HandleResolution(ctx, ev)
	if err != nil {
		return err
	}
	if !matched {
		// No market maps to the condition; the resolver already logged it.
		return nil
	}

	if err := in.recordAudit(ctx, ev.Log, "market.resolved", market.ID, map[string]any{
		"condition": ev.ConditionID.Hex(),
		"state":     string(market.Resolution.State),
		"winner":    market.Resolution.WinningOutcome,
	}); err != nil {
		return err
	}

	in.publish(ctx, ChannelMarkets, market)
	return nil
}

func (in *Ingestor) handleAdmin(ctx context.Context, ev chain.AdminTransferred) error {
	return in.recordAudit(ctx, ev.Log, "admin.transferred", ev.Address.Hex(), map[string]any{
		"previous_admin": ev.PreviousAdmin.Hex(),
		"new_admin":      ev.NewAdmin.Hex(),
	})
}

// recordAudit writes the append-only audit row for one raw event. The row id
// is salted per record kind, so the audit row never collides with the ledger
// row derived from the same event.
func (in *Ingestor) recordAudit(ctx context.Context, l chain.Log, event, marketID string, detail map[string]any) error {
	return in.audit.Record(ctx, domain.AuditEntry{
		ID:        chain.RecordIDFromLog(l, chain.RecordAudit),
		Event:     event,
		MarketID:  marketID,
		Detail:    detail,
		TxHash:    l.TxHash.Hex(),
		LogIndex:  l.LogIndex,
		CreatedAt: l.BlockTimestamp,
	})
}

// publish is best-effort: a bus failure never fails ingestion.
func (in *Ingestor) publish(ctx context.Context, channel string, payload any) {
	if in.bus == nil {
		return
	}
	if err := in.bus.Publish(ctx, channel, payload); err != nil {
		in.logger.WarnContext(ctx, "publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
