// Package ledger implements the position-accounting engine, the transaction
// ledger builder, the market registry, and the resolution classifier.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/mengo6988/foresight-graph/internal/chain"
	"github.com/mengo6988/foresight-graph/internal/domain"
)

// SelectOutcome returns the index of the first non-zero delta in a trade's
// per-outcome token amounts. The protocol emits exactly one non-zero entry
// per trade; if that precondition is violated the first non-zero entry wins
// deterministically. ok is false when every entry is zero, in which case the
// trade has no position effect.
func SelectOutcome(deltas []*big.Int) (idx int, ok bool) {
	for i, d := range deltas {
		if d != nil && d.Sign() != 0 {
			return i, true
		}
	}
	return 0, false
}

// Apply advances a position by one trade for its outcome. delta is the signed
// token amount for the selected outcome and cost is abs(netCost), the
// collateral paid (buy) or received (sell).
//
// Buys use weighted-average-cost accounting: the average is re-based over all
// shares held including the new lot. Sells allocate cost basis from the
// stored average, truncated to the integer unit of account; the average is
// not recomputed on a sell. Sells beyond the recorded position are clamped,
// and invested capital is floored at zero to absorb truncation drift.
//
// Updates are not commutative: the caller must apply trades for one position
// key in event order, exactly once. A zero delta leaves the position
// untouched, including its timestamp.
func Apply(pos *domain.UserPosition, delta, cost *big.Int, at time.Time) {
	if delta.Sign() == 0 {
		return
	}
	if delta.Sign() > 0 {
		applyBuy(pos, delta, cost)
	} else {
		applySell(pos, new(big.Int).Neg(delta), cost)
	}
	pos.LastUpdatedAt = at
}

func applyBuy(pos *domain.UserPosition, delta, cost *big.Int) {
	pos.TotalShares.Add(pos.TotalShares, delta)
	pos.TotalInvested.Add(pos.TotalInvested, cost)

	if pos.TotalShares.Sign() == 0 {
		pos.AvgCost.SetInt64(0)
		return
	}
	pos.AvgCost.SetFrac(new(big.Int).Set(pos.TotalInvested), new(big.Int).Set(pos.TotalShares))
}

func applySell(pos *domain.UserPosition, tokensSold, proceeds *big.Int) {
	if tokensSold.Cmp(pos.TotalShares) > 0 {
		tokensSold = new(big.Int).Set(pos.TotalShares)
	}

	costBasis := truncMul(pos.AvgCost, tokensSold)

	pos.RealizedPnL.Add(pos.RealizedPnL, new(big.Int).Sub(proceeds, costBasis))
	pos.TotalShares.Sub(pos.TotalShares, tokensSold)
	pos.TotalInvested.Sub(pos.TotalInvested, costBasis)
	if pos.TotalInvested.Sign() < 0 {
		pos.TotalInvested.SetInt64(0)
	}
	if pos.TotalShares.Sign() == 0 {
		pos.AvgCost.SetInt64(0)
	}
}

// truncMul computes trunc(rat * n) for non-negative operands.
func truncMul(rat *big.Rat, n *big.Int) *big.Int {
	out := new(big.Int).Mul(rat.Num(), n)
	return out.Quo(out, rat.Denom())
}

// Engine applies trade events against persisted positions. It owns the
// load-mutate-store cycle for one position key per event; callers must
// deliver a market's events in order, exactly once.
type Engine struct {
	positions domain.PositionStore
	logger    *slog.Logger
}

// NewEngine creates an Engine backed by the given position store.
func NewEngine(positions domain.PositionStore, logger *slog.Logger) *Engine {
	return &Engine{
		positions: positions,
		logger:    logger.With(slog.String("component", "position_engine")),
	}
}

// ApplyTrade updates the (transactor, market, outcome) position for one trade
// event and persists it. The returned bool is false for trades with all-zero
// deltas, which are no-ops.
func (e *Engine) ApplyTrade(ctx context.Context, market domain.Market, ev chain.OutcomeTokenTrade) (*domain.UserPosition, bool, error) {
	idx, ok := SelectOutcome(ev.OutcomeTokenAmounts)
	if !ok {
		return nil, false, nil
	}

	user := ev.Transactor.Hex()

	pos, err := e.positions.Get(ctx, user, market.ID, idx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		pos = domain.NewUserPosition(user, market.ID, idx)
	case err != nil:
		return nil, false, fmt.Errorf("ledger: load position %s: %w", domain.PositionKey(user, market.ID, idx), err)
	}

	if pos.PositionID == "" && idx < len(market.PositionIDs) {
		pos.PositionID = market.PositionIDs[idx]
	}

	cost := new(big.Int).Abs(ev.NetCost)
	Apply(pos, ev.OutcomeTokenAmounts[idx], cost, ev.BlockTimestamp)

	if err := e.positions.Upsert(ctx, pos); err != nil {
		return nil, false, fmt.Errorf("ledger: store position %s: %w", pos.Key(), err)
	}

	e.logger.DebugContext(ctx, "position updated",
		slog.String("user", user),
		slog.String("market", market.ID),
		slog.Int("outcome", idx),
		slog.String("shares", pos.TotalShares.String()),
		slog.String("invested", pos.TotalInvested.String()),
		slog.String("realized_pnl", pos.RealizedPnL.String()),
	)

	return pos, true, nil
}
