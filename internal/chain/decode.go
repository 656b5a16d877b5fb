package chain

import (
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// The feed delivers every field as a decimal or hex string (subgraph wire
// format). The decoders below turn those into typed events. A field that does
// not parse, or a parameter set with the wrong arity, is a malformed event:
// the error wraps domain.ErrMalformedEvent and the caller must not apply any
// part of the event.

// ParseLog builds the event envelope from raw feed fields.
func ParseLog(blockNumber, timestamp, txHash, logIndex, address string) (Log, error) {
	bn, err := strconv.ParseUint(blockNumber, 10, 64)
	if err != nil {
		return Log{}, malformed("block number %q", blockNumber)
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return Log{}, malformed("block timestamp %q", timestamp)
	}
	idx, err := strconv.ParseUint(logIndex, 10, 32)
	if err != nil {
		return Log{}, malformed("log index %q", logIndex)
	}
	hash, err := parseHash(txHash)
	if err != nil {
		return Log{}, err
	}
	addr, err := parseAddress(address)
	if err != nil {
		return Log{}, err
	}

	return Log{
		BlockNumber:    bn,
		BlockTimestamp: time.Unix(ts, 0).UTC(),
		TxHash:         hash,
		LogIndex:       uint(idx),
		Address:        addr,
	}, nil
}

// DecodeTrade decodes an AMMOutcomeTokenTrade parameter set.
func DecodeTrade(l Log, transactor string, outcomeTokenAmounts []string, netCost, marketFees string) (OutcomeTokenTrade, error) {
	addr, err := parseAddress(transactor)
	if err != nil {
		return OutcomeTokenTrade{}, err
	}
	if len(outcomeTokenAmounts) == 0 {
		return OutcomeTokenTrade{}, malformed("empty outcome token amounts")
	}
	amounts := make([]*big.Int, len(outcomeTokenAmounts))
	for i, raw := range outcomeTokenAmounts {
		amounts[i], err = parseBigInt(raw)
		if err != nil {
			return OutcomeTokenTrade{}, err
		}
	}
	cost, err := parseBigInt(netCost)
	if err != nil {
		return OutcomeTokenTrade{}, err
	}
	fees, err := parseBigInt(marketFees)
	if err != nil {
		return OutcomeTokenTrade{}, err
	}

	return OutcomeTokenTrade{
		Log:                 l,
		Transactor:          addr,
		OutcomeTokenAmounts: amounts,
		NetCost:             cost,
		MarketFees:          fees,
	}, nil
}

// DecodeRedemption decodes a PayoutRedemption parameter set.
func DecodeRedemption(l Log, redeemer, collateralToken, conditionID, payout string) (PayoutRedemption, error) {
	user, err := parseAddress(redeemer)
	if err != nil {
		return PayoutRedemption{}, err
	}
	token, err := parseAddress(collateralToken)
	if err != nil {
		return PayoutRedemption{}, err
	}
	cond, err := parseHash(conditionID)
	if err != nil {
		return PayoutRedemption{}, err
	}
	amount, err := parseBigInt(payout)
	if err != nil {
		return PayoutRedemption{}, err
	}

	return PayoutRedemption{
		Log:             l,
		Redeemer:        user,
		CollateralToken: token,
		ConditionID:     cond,
		Payout:          amount,
	}, nil
}

// DecodeResolution decodes a ConditionResolution parameter set.
func DecodeResolution(l Log, conditionID string, payoutNumerators []string) (ConditionResolution, error) {
	cond, err := parseHash(conditionID)
	if err != nil {
		return ConditionResolution{}, err
	}
	if len(payoutNumerators) == 0 {
		return ConditionResolution{}, malformed("empty payout numerators")
	}
	numerators := make([]*big.Int, len(payoutNumerators))
	for i, raw := range payoutNumerators {
		numerators[i], err = parseBigInt(raw)
		if err != nil {
			return ConditionResolution{}, err
		}
	}

	return ConditionResolution{
		Log:              l,
		ConditionID:      cond,
		PayoutNumerators: numerators,
	}, nil
}

// DecodeCreation decodes a market-maker factory creation parameter set.
func DecodeCreation(l Log, creator, marketMaker, collateralToken string, conditionIDs []string, fee, funding string) (MarketCreation, error) {
	creatorAddr, err := parseAddress(creator)
	if err != nil {
		return MarketCreation{}, err
	}
	mmAddr, err := parseAddress(marketMaker)
	if err != nil {
		return MarketCreation{}, err
	}
	token, err := parseAddress(collateralToken)
	if err != nil {
		return MarketCreation{}, err
	}
	conds := make([]common.Hash, len(conditionIDs))
	for i, raw := range conditionIDs {
		conds[i], err = parseHash(raw)
		if err != nil {
			return MarketCreation{}, err
		}
	}
	feeAmt, err := parseBigInt(fee)
	if err != nil {
		return MarketCreation{}, err
	}
	fundingAmt, err := parseBigInt(funding)
	if err != nil {
		return MarketCreation{}, err
	}

	return MarketCreation{
		Log:             l,
		Creator:         creatorAddr,
		MarketMaker:     mmAddr,
		CollateralToken: token,
		ConditionIDs:    conds,
		Fee:             feeAmt,
		Funding:         fundingAmt,
	}, nil
}

// DecodeAdmin decodes an AdminTransferred parameter set.
func DecodeAdmin(l Log, previousAdmin, newAdmin string) (AdminTransferred, error) {
	prev, err := parseAddress(previousAdmin)
	if err != nil {
		return AdminTransferred{}, err
	}
	next, err := parseAddress(newAdmin)
	if err != nil {
		return AdminTransferred{}, err
	}

	return AdminTransferred{Log: l, PreviousAdmin: prev, NewAdmin: next}, nil
}

func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, malformed("address %q", s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, malformed("32-byte hash %q", s)
	}
	return common.BytesToHash(b), nil
}

// parseBigInt accepts decimal strings with an optional leading minus sign,
// the form subgraph responses use for both signed and unsigned 256-bit
// values.
func parseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, malformed("integer %q", s)
	}
	return v, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("chain: %s: %w", fmt.Sprintf(format, args...), domain.ErrMalformedEvent)
}
