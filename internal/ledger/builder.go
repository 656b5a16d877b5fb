package ledger

import (
	"math/big"

	"github.com/mengo6988/foresight-graph/internal/chain"
	"github.com/mengo6988/foresight-graph/internal/domain"
)

// BuildTrade derives the normalized user transaction for a trade event.
// Kind is Buy when the net cost is non-negative (the transactor paid
// collateral in), otherwise Sell. The collateral amount is the absolute net
// cost; the token amount is the sum of absolute per-outcome deltas, i.e. the
// total volume moved rather than the net.
func BuildTrade(marketID string, ev chain.OutcomeTokenTrade) domain.UserTransaction {
	kind := domain.TransactionBuy
	if ev.NetCost.Sign() < 0 {
		kind = domain.TransactionSell
	}

	total := new(big.Int)
	for _, a := range ev.OutcomeTokenAmounts {
		total.Add(total, new(big.Int).Abs(a))
	}

	return domain.UserTransaction{
		ID:                 chain.RecordIDFromLog(ev.Log, chain.RecordTransaction),
		User:               ev.Transactor.Hex(),
		MarketID:           marketID,
		Kind:               kind,
		CollateralAmount:   new(big.Int).Abs(ev.NetCost),
		OutcomeTokenAmount: total,
		BlockNumber:        ev.BlockNumber,
		BlockTimestamp:     ev.BlockTimestamp,
		TxHash:             ev.TxHash.Hex(),
		LogIndex:           ev.LogIndex,
	}
}

// BuildRedemption derives the normalized user transaction for a redemption
// event. The event carries no per-outcome burn amounts, so the payout is
// stored as the token-amount proxy and the row is flagged approximate.
func BuildRedemption(marketID string, ev chain.PayoutRedemption) domain.UserTransaction {
	return domain.UserTransaction{
		ID:                 chain.RecordIDFromLog(ev.Log, chain.RecordTransaction),
		User:               ev.Redeemer.Hex(),
		MarketID:           marketID,
		Kind:               domain.TransactionRedeem,
		CollateralAmount:   new(big.Int).Set(ev.Payout),
		OutcomeTokenAmount: new(big.Int).Set(ev.Payout),
		ApproxTokenAmount:  true,
		BlockNumber:        ev.BlockNumber,
		BlockTimestamp:     ev.BlockTimestamp,
		TxHash:             ev.TxHash.Hex(),
		LogIndex:           ev.LogIndex,
	}
}

// BuildTransfer derives the collateral-transfer audit record for a redemption
// event, framed as a mint from the zero address to the redeemer.
func BuildTransfer(ev chain.PayoutRedemption) domain.CollateralTransfer {
	return domain.CollateralTransfer{
		ID:              chain.RecordIDFromLog(ev.Log, chain.RecordTransfer),
		From:            domain.ZeroAddress,
		To:              ev.Redeemer.Hex(),
		Value:           new(big.Int).Set(ev.Payout),
		Token:           ev.CollateralToken.Hex(),
		RelatedContract: ev.Address.Hex(),
		BlockNumber:     ev.BlockNumber,
		BlockTimestamp:  ev.BlockTimestamp,
		TxHash:          ev.TxHash.Hex(),
	}
}
