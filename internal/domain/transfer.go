package domain

import (
	"math/big"
	"time"
)

// ZeroAddress is the mint/burn counterparty used when a redemption is framed
// as a collateral transfer out of the conditional-tokens contract.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// CollateralTransfer is an append-only audit record of raw collateral
// movement derived from a redemption event. It has no further lifecycle.
type CollateralTransfer struct {
	ID              string    `json:"id"`
	From            string    `json:"from"`
	To              string    `json:"to"`
	Value           *big.Int  `json:"value"`
	Token           string    `json:"token"`
	RelatedContract string    `json:"related_contract"`
	BlockNumber     uint64    `json:"block_number"`
	BlockTimestamp  time.Time `json:"block_timestamp"`
	TxHash          string    `json:"tx_hash"`
}
