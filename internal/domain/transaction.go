package domain

import (
	"math/big"
	"time"
)

// TransactionKind classifies a normalized user transaction.
type TransactionKind string

const (
	TransactionBuy    TransactionKind = "buy"
	TransactionSell   TransactionKind = "sell"
	TransactionRedeem TransactionKind = "redeem"
)

// UserTransaction is one normalized ledger row per trade or redemption event,
// append-only. Its ID is derived deterministically from the source transaction
// hash, log index, and a per-record salt, so re-processing the same event
// upserts the same row instead of duplicating it.
type UserTransaction struct {
	ID       string          `json:"id"`
	User     string          `json:"user"`
	MarketID string          `json:"market_id"`
	Kind     TransactionKind `json:"kind"`

	// CollateralAmount is the unsigned collateral magnitude: |netCost| for
	// trades, the reported payout for redemptions.
	CollateralAmount *big.Int `json:"collateral_amount"`

	// OutcomeTokenAmount is the total absolute token volume moved. For
	// redemptions the event carries no per-outcome burn amounts, so the
	// payout is stored as a proxy and ApproxTokenAmount is set.
	OutcomeTokenAmount *big.Int `json:"outcome_token_amount"`
	ApproxTokenAmount  bool     `json:"approx_token_amount"`

	BlockNumber    uint64    `json:"block_number"`
	BlockTimestamp time.Time `json:"block_timestamp"`
	TxHash         string    `json:"tx_hash"`
	LogIndex       uint      `json:"log_index"`
}
