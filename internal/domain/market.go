package domain

import (
	"math/big"
	"time"
)

// ResolutionState is the lifecycle state of a market's settlement.
type ResolutionState string

const (
	ResolutionUnresolved ResolutionState = "unresolved"
	ResolutionDraw       ResolutionState = "draw"
	ResolutionResolved   ResolutionState = "resolved"
)

// Resolution is the tagged settlement outcome of a market. WinningOutcome is
// only meaningful when State is ResolutionResolved; it is never used as an
// in-band sentinel for the other states.
type Resolution struct {
	State          ResolutionState `json:"state"`
	WinningOutcome int             `json:"winning_outcome"`
}

// Unresolved returns the initial resolution state.
func Unresolved() Resolution {
	return Resolution{State: ResolutionUnresolved}
}

// ResolutionPolicy selects how a settlement payout vector is classified.
// The policy is fixed per market family at registration time and must not be
// mixed within one family.
type ResolutionPolicy string

const (
	// PolicyFirstNonZero scans the payout vector for the first non-zero
	// numerator; an all-zero vector is a draw. Works for any outcome count.
	PolicyFirstNonZero ResolutionPolicy = "first-nonzero"

	// PolicyBinary compares the first two numerators; equal numerators are a
	// draw. Only valid for two-outcome markets.
	PolicyBinary ResolutionPolicy = "binary"
)

// Market is one AMM/condition instance. It is created on the first event that
// references it (creation, trade, or redemption) and never deleted. The
// position-id list only grows; the resolution is mutated only by the
// resolution classifier.
type Market struct {
	ID               string           `json:"id"` // AMM contract address, or emitting contract for placeholders
	Address          string           `json:"address"`
	CollateralToken  string           `json:"collateral_token"`
	ConditionIDs     []string         `json:"condition_ids"`
	PositionIDs      []string         `json:"position_ids"`
	Resolution       Resolution       `json:"resolution"`
	ResolutionPolicy ResolutionPolicy `json:"resolution_policy"`
	Creator          string           `json:"creator,omitempty"`
	InitialFunding   *big.Int         `json:"initial_funding,omitempty"`
	Placeholder      bool             `json:"placeholder"` // fabricated because the creation event was not indexed
	CreatedAt        time.Time        `json:"created_at"`  // block timestamp of the creating event
	CreatedTx        string           `json:"created_tx"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
