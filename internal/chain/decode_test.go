package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

const (
	testAddr = "0x1111111111111111111111111111111111111111"
	testHash = "0x2222222222222222222222222222222222222222222222222222222222222222"
)

func validLog(t *testing.T) Log {
	t.Helper()
	l, err := ParseLog("100", "1700000000", testHash, "3", testAddr)
	require.NoError(t, err)
	return l
}

func TestParseLog(t *testing.T) {
	l := validLog(t)
	assert.Equal(t, uint64(100), l.BlockNumber)
	assert.Equal(t, int64(1700000000), l.BlockTimestamp.Unix())
	assert.Equal(t, uint(3), l.LogIndex)
	assert.Equal(t, testHash, l.TxHash.Hex())
}

func TestParseLog_Malformed(t *testing.T) {
	cases := []struct {
		name                                string
		block, ts, txHash, logIdx, address string
	}{
		{"bad block", "x", "1700000000", testHash, "3", testAddr},
		{"bad timestamp", "100", "now", testHash, "3", testAddr},
		{"bad tx hash", "100", "1700000000", "0x12", "3", testAddr},
		{"bad log index", "100", "1700000000", testHash, "-1", testAddr},
		{"bad address", "100", "1700000000", testHash, "3", "0xzz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLog(tc.block, tc.ts, tc.txHash, tc.logIdx, tc.address)
			assert.ErrorIs(t, err, domain.ErrMalformedEvent)
		})
	}
}

func TestDecodeTrade(t *testing.T) {
	ev, err := DecodeTrade(validLog(t), testAddr, []string{"100", "-40"}, "-95", "2")
	require.NoError(t, err)
	assert.Equal(t, int64(100), ev.OutcomeTokenAmounts[0].Int64())
	assert.Equal(t, int64(-40), ev.OutcomeTokenAmounts[1].Int64())
	assert.Equal(t, int64(-95), ev.NetCost.Int64())
	assert.Equal(t, KindTrade, ev.Kind())
}

func TestDecodeTrade_Malformed(t *testing.T) {
	l := validLog(t)

	_, err := DecodeTrade(l, "nope", []string{"1"}, "0", "0")
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)

	_, err = DecodeTrade(l, testAddr, nil, "0", "0")
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)

	_, err = DecodeTrade(l, testAddr, []string{"1", "1.5"}, "0", "0")
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)
}

func TestDecodeRedemption(t *testing.T) {
	ev, err := DecodeRedemption(validLog(t), testAddr, testAddr, testHash, "777")
	require.NoError(t, err)
	assert.Equal(t, int64(777), ev.Payout.Int64())
	assert.Equal(t, testHash, ev.ConditionID.Hex())
	assert.Equal(t, KindRedemption, ev.Kind())
}

func TestDecodeResolution(t *testing.T) {
	ev, err := DecodeResolution(validLog(t), testHash, []string{"0", "1"})
	require.NoError(t, err)
	assert.Len(t, ev.PayoutNumerators, 2)

	_, err = DecodeResolution(validLog(t), testHash, nil)
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)
}

func TestDecodeCreation(t *testing.T) {
	ev, err := DecodeCreation(validLog(t), testAddr, testAddr, testAddr, []string{testHash}, "200", "1000000")
	require.NoError(t, err)
	assert.Len(t, ev.ConditionIDs, 1)
	assert.Equal(t, int64(1000000), ev.Funding.Int64())
}

func TestDecodeAdmin(t *testing.T) {
	ev, err := DecodeAdmin(validLog(t), testAddr, testAddr)
	require.NoError(t, err)
	assert.Equal(t, KindAdmin, ev.Kind())
}

// Large 256-bit magnitudes survive decoding without truncation.
func TestDecodeTrade_BigMagnitudes(t *testing.T) {
	huge := "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	ev, err := DecodeTrade(validLog(t), testAddr, []string{huge}, huge, "0")
	require.NoError(t, err)
	assert.Equal(t, huge, ev.OutcomeTokenAmounts[0].String())
}
