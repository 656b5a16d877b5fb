package domain

import (
	"fmt"
	"math/big"
	"time"
)

// UserPosition is the running position for one (user, market, outcome) triple.
// Shares, invested capital, and realized PnL are exact integers in the
// collateral's smallest unit; the average cost is an exact rational so that
// repeated partial sells never accumulate floating-point drift.
//
// Invariants: TotalShares >= 0, TotalInvested >= 0, and AvgCost is zero
// whenever TotalShares is zero.
type UserPosition struct {
	User         string `json:"user"`
	MarketID     string `json:"market_id"`
	OutcomeIndex int    `json:"outcome_index"`

	// PositionID is the on-chain ERC-1155 position identifier, when known.
	PositionID string `json:"position_id,omitempty"`

	TotalShares   *big.Int `json:"total_shares"`
	TotalInvested *big.Int `json:"total_invested"`
	RealizedPnL   *big.Int `json:"realized_pnl"`
	AvgCost       *big.Rat `json:"avg_cost"`

	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// NewUserPosition returns a zeroed position for the given triple.
func NewUserPosition(user, marketID string, outcome int) *UserPosition {
	return &UserPosition{
		User:          user,
		MarketID:      marketID,
		OutcomeIndex:  outcome,
		TotalShares:   new(big.Int),
		TotalInvested: new(big.Int),
		RealizedPnL:   new(big.Int),
		AvgCost:       new(big.Rat),
	}
}

// Key returns the composite identity used by position stores.
func (p *UserPosition) Key() string {
	return PositionKey(p.User, p.MarketID, p.OutcomeIndex)
}

// PositionKey builds the composite (user, market, outcome) store key.
func PositionKey(user, marketID string, outcome int) string {
	return fmt.Sprintf("%s:%s:%d", user, marketID, outcome)
}
