// Package chain defines the decoded on-chain event types consumed by the
// ledger, the raw log envelope they carry, and the deterministic record
// identity derived from it.
package chain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind discriminates decoded protocol events.
type EventKind string

const (
	KindTrade      EventKind = "trade"
	KindRedemption EventKind = "redemption"
	KindResolution EventKind = "resolution"
	KindCreation   EventKind = "creation"
	KindAdmin      EventKind = "admin"
)

// Log is the envelope every decoded event carries: block metadata,
// transaction metadata, and the emitting contract.
type Log struct {
	BlockNumber    uint64
	BlockTimestamp time.Time
	TxHash         common.Hash
	LogIndex       uint
	Address        common.Address
}

// Event is implemented by every decoded protocol event.
type Event interface {
	Kind() EventKind
	EventLog() Log
}

// OutcomeTokenTrade is an AMM trade: signed per-outcome token deltas and a
// signed net collateral cost (positive = the transactor paid in).
type OutcomeTokenTrade struct {
	Log
	Transactor          common.Address
	OutcomeTokenAmounts []*big.Int
	NetCost             *big.Int
	MarketFees          *big.Int
}

func (e OutcomeTokenTrade) Kind() EventKind { return KindTrade }
func (e OutcomeTokenTrade) EventLog() Log   { return e.Log }

// PayoutRedemption is a settled-position redemption against the
// conditional-tokens contract.
type PayoutRedemption struct {
	Log
	Redeemer        common.Address
	CollateralToken common.Address
	ConditionID     common.Hash
	Payout          *big.Int
}

func (e PayoutRedemption) Kind() EventKind { return KindRedemption }
func (e PayoutRedemption) EventLog() Log   { return e.Log }

// ConditionResolution reports the oracle's payout numerators for a condition.
type ConditionResolution struct {
	Log
	ConditionID      common.Hash
	PayoutNumerators []*big.Int
}

func (e ConditionResolution) Kind() EventKind { return KindResolution }
func (e ConditionResolution) EventLog() Log   { return e.Log }

// MarketCreation is the factory event announcing a new AMM instance.
type MarketCreation struct {
	Log
	Creator         common.Address
	MarketMaker     common.Address
	CollateralToken common.Address
	ConditionIDs    []common.Hash
	Fee             *big.Int
	Funding         *big.Int
}

func (e MarketCreation) Kind() EventKind { return KindCreation }
func (e MarketCreation) EventLog() Log   { return e.Log }

// AdminTransferred is an AMM admin handover. It carries no ledger semantics
// and is recorded to the audit log only.
type AdminTransferred struct {
	Log
	PreviousAdmin common.Address
	NewAdmin      common.Address
}

func (e AdminTransferred) Kind() EventKind { return KindAdmin }
func (e AdminTransferred) EventLog() Log   { return e.Log }
