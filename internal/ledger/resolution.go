package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/mengo6988/foresight-graph/internal/chain"
	"github.com/mengo6988/foresight-graph/internal/domain"
)

// Classify maps a settlement payout vector to a resolution outcome under the
// given policy.
//
// PolicyBinary compares the first two numerators: equal means draw, otherwise
// the larger side wins. A vector too short for the binary comparison falls
// back to the general scan rather than failing, since resolution must always
// leave the market in a terminal state.
//
// PolicyFirstNonZero scans for the first non-zero numerator: its index wins,
// and an all-zero vector is a draw.
func Classify(policy domain.ResolutionPolicy, numerators []*big.Int) domain.Resolution {
	if policy == domain.PolicyBinary && len(numerators) >= 2 {
		switch numerators[0].Cmp(numerators[1]) {
		case 0:
			return domain.Resolution{State: domain.ResolutionDraw}
		case 1:
			return domain.Resolution{State: domain.ResolutionResolved, WinningOutcome: 0}
		default:
			return domain.Resolution{State: domain.ResolutionResolved, WinningOutcome: 1}
		}
	}

	for i, n := range numerators {
		if n.Sign() > 0 {
			return domain.Resolution{State: domain.ResolutionResolved, WinningOutcome: i}
		}
	}
	return domain.Resolution{State: domain.ResolutionDraw}
}

// Resolver applies condition-resolution events to market records.
type Resolver struct {
	registry *Registry
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(registry *Registry, logger *slog.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		logger:   logger.With(slog.String("component", "resolver")),
	}
}

// HandleResolution classifies the event's payout vector under the market's
// registered policy and stores the outcome. When no market is mapped to the
// condition the event is skipped; that is a recoverable no-op, not an error.
// A second resolution for the same market overwrites the first.
func (r *Resolver) HandleResolution(ctx context.Context, ev chain.ConditionResolution) (domain.Market, bool, error) {
	market, err := r.registry.GetByCondition(ctx, ev.ConditionID.Hex())
	if errors.Is(err, domain.ErrNotFound) {
		r.logger.WarnContext(ctx, "resolution for unmapped condition, skipping",
			slog.String("condition_id", ev.ConditionID.Hex()),
			slog.String("tx_hash", ev.TxHash.Hex()),
		)
		return domain.Market{}, false, nil
	}
	if err != nil {
		return domain.Market{}, false, fmt.Errorf("ledger: resolve condition %s: %w", ev.ConditionID.Hex(), err)
	}

	market.Resolution = Classify(market.ResolutionPolicy, ev.PayoutNumerators)
	market.UpdatedAt = ev.BlockTimestamp

	if err := r.registry.Save(ctx, market); err != nil {
		return domain.Market{}, false, fmt.Errorf("ledger: store resolution for market %s: %w", market.ID, err)
	}

	r.logger.InfoContext(ctx, "market resolved",
		slog.String("market", market.ID),
		slog.String("state", string(market.Resolution.State)),
		slog.Int("winning_outcome", market.Resolution.WinningOutcome),
	)

	return market, true, nil
}
