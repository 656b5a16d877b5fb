package pipeline

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengo6988/foresight-graph/internal/chain"
	"github.com/mengo6988/foresight-graph/internal/domain"
	"github.com/mengo6988/foresight-graph/internal/ledger"
)

type ingestHarness struct {
	ingestor    *Ingestor
	markets     *memMarketStore
	positions   *memPositionStore
	txs         *memTxStore
	transfers   *memTransferStore
	audit       *memAuditStore
	checkpoints *memCheckpointStore
	bus         *memBus
}

func newIngestHarness(t *testing.T) *ingestHarness {
	t.Helper()
	logger := discardLogger()

	markets := newMemMarketStore()
	positions := newMemPositionStore()
	txs := newMemTxStore()
	transfers := newMemTransferStore()
	audit := newMemAuditStore()
	checkpoints := newMemCheckpointStore()
	bus := newMemBus()

	registry := ledger.NewRegistry(markets, nil, domain.PolicyFirstNonZero, logger)
	engine := ledger.NewEngine(positions, logger)
	resolver := ledger.NewResolver(registry, logger)

	ingestor := NewIngestor(IngestorDeps{
		Registry:    registry,
		Engine:      engine,
		Resolver:    resolver,
		Txs:         txs,
		Transfers:   transfers,
		Audit:       audit,
		Checkpoints: checkpoints,
		Bus:         bus,
	}, "test", 2, logger)

	return &ingestHarness{
		ingestor:    ingestor,
		markets:     markets,
		positions:   positions,
		txs:         txs,
		transfers:   transfers,
		audit:       audit,
		checkpoints: checkpoints,
		bus:         bus,
	}
}

func testLog(block uint64, logIdx uint) chain.Log {
	return chain.Log{
		BlockNumber:    block,
		BlockTimestamp: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(block) * time.Second),
		TxHash:         common.BigToHash(big.NewInt(int64(block*1000 + uint64(logIdx)))),
		LogIndex:       logIdx,
		Address:        common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	}
}

func TestProcessBatch_CreationRegistersMarket(t *testing.T) {
	h := newIngestHarness(t)
	maker := common.HexToAddress("0x00000000000000000000000000000000000000b1")

	ev := chain.MarketCreation{
		Log:             testLog(100, 0),
		Creator:         common.HexToAddress("0xc1"),
		MarketMaker:     maker,
		CollateralToken: common.HexToAddress("0xf0"),
		ConditionIDs:    []common.Hash{common.HexToHash("0x01")},
		Fee:             big.NewInt(200),
		Funding:         big.NewInt(1_000_000),
	}

	n, err := h.ingestor.ProcessBatch(context.Background(), []chain.Event{ev})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	m, err := h.markets.GetByID(context.Background(), maker.Hex())
	require.NoError(t, err)
	assert.False(t, m.Placeholder)
	assert.Equal(t, ev.Creator.Hex(), m.Creator)

	// Condition now maps to the market.
	byCond, err := h.markets.GetByCondition(context.Background(), common.HexToHash("0x01").Hex())
	require.NoError(t, err)
	assert.Equal(t, m.ID, byCond.ID)

	assert.Len(t, h.audit.byEvent("market.created"), 1)
	assert.Len(t, h.bus.messages[ChannelMarkets], 1)
}

func TestProcessBatch_TradeCreatesPlaceholderAndPosition(t *testing.T) {
	h := newIngestHarness(t)

	ev := chain.OutcomeTokenTrade{
		Log:                 testLog(200, 3),
		Transactor:          common.HexToAddress("0xaa11"),
		OutcomeTokenAmounts: []*big.Int{big.NewInt(100), big.NewInt(0)},
		NetCost:             big.NewInt(100),
		MarketFees:          big.NewInt(0),
	}

	_, err := h.ingestor.ProcessBatch(context.Background(), []chain.Event{ev})
	require.NoError(t, err)

	marketID := ev.Address.Hex()
	m, err := h.markets.GetByID(context.Background(), marketID)
	require.NoError(t, err)
	assert.True(t, m.Placeholder)
	assert.Len(t, m.PositionIDs, 2)

	// Ledger row.
	txID := chain.RecordIDFromLog(ev.Log, chain.RecordTransaction)
	tx, err := h.txs.GetByID(context.Background(), txID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionBuy, tx.Kind)
	assert.Equal(t, "100", tx.CollateralAmount.String())

	// Position.
	pos, err := h.positions.Get(context.Background(), ev.Transactor.Hex(), marketID, 0)
	require.NoError(t, err)
	assert.Equal(t, "100", pos.TotalShares.String())
	assert.Equal(t, "100", pos.TotalInvested.String())

	assert.Len(t, h.bus.messages[ChannelTrades], 1)
}

func TestProcessBatch_RedemptionFallsBackToPlaceholder(t *testing.T) {
	h := newIngestHarness(t)
	cond := common.HexToHash("0xbeef")

	ev := chain.PayoutRedemption{
		Log:             testLog(300, 1),
		Redeemer:        common.HexToAddress("0xaa22"),
		CollateralToken: common.HexToAddress("0xf0"),
		ConditionID:     cond,
		Payout:          big.NewInt(250),
	}

	_, err := h.ingestor.ProcessBatch(context.Background(), []chain.Event{ev})
	require.NoError(t, err)

	// A placeholder market keyed by the emitting contract now owns the
	// condition.
	m, err := h.markets.GetByCondition(context.Background(), cond.Hex())
	require.NoError(t, err)
	assert.True(t, m.Placeholder)
	assert.Equal(t, ev.Address.Hex(), m.ID)
	assert.Len(t, m.PositionIDs, 2)

	// Redemption ledger row with the payout proxy flagged approximate.
	txID := chain.RecordIDFromLog(ev.Log, chain.RecordTransaction)
	tx, err := h.txs.GetByID(context.Background(), txID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionRedeem, tx.Kind)
	assert.True(t, tx.ApproxTokenAmount)

	// Collateral transfer framed as a mint to the redeemer.
	transfers, err := h.transfers.ListByUser(context.Background(), ev.Redeemer.Hex(), domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, domain.ZeroAddress, transfers[0].From)
	assert.Equal(t, "250", transfers[0].Value.String())

	// A second redemption on the same condition reuses the market.
	ev2 := ev
	ev2.Log = testLog(301, 0)
	_, err = h.ingestor.ProcessBatch(context.Background(), []chain.Event{ev2})
	require.NoError(t, err)

	count, _ := h.markets.Count(context.Background())
	assert.Equal(t, int64(1), count)
}

func TestProcessBatch_ResolutionUnmappedIsSkipped(t *testing.T) {
	h := newIngestHarness(t)

	ev := chain.ConditionResolution{
		Log:              testLog(400, 0),
		ConditionID:      common.HexToHash("0xdead"),
		PayoutNumerators: []*big.Int{big.NewInt(1), big.NewInt(0)},
	}

	n, err := h.ingestor.ProcessBatch(context.Background(), []chain.Event{ev})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, h.audit.byEvent("market.resolved"))
}

func TestProcessBatch_ResolutionSettlesMappedMarket(t *testing.T) {
	h := newIngestHarness(t)
	cond := common.HexToHash("0x01")

	creation := chain.MarketCreation{
		Log:          testLog(100, 0),
		Creator:      common.HexToAddress("0xc1"),
		MarketMaker:  common.HexToAddress("0xb1"),
		ConditionIDs: []common.Hash{cond},
	}
	resolution := chain.ConditionResolution{
		Log:              testLog(500, 2),
		ConditionID:      cond,
		PayoutNumerators: []*big.Int{big.NewInt(0), big.NewInt(7)},
	}

	_, err := h.ingestor.ProcessBatch(context.Background(), []chain.Event{creation, resolution})
	require.NoError(t, err)

	m, err := h.markets.GetByID(context.Background(), creation.MarketMaker.Hex())
	require.NoError(t, err)
	assert.Equal(t, domain.ResolutionResolved, m.Resolution.State)
	assert.Equal(t, 1, m.Resolution.WinningOutcome)

	assert.Len(t, h.audit.byEvent("market.resolved"), 1)
}

func TestProcessBatch_AdminTransferIsAuditOnly(t *testing.T) {
	h := newIngestHarness(t)

	ev := chain.AdminTransferred{
		Log:           testLog(600, 0),
		PreviousAdmin: common.HexToAddress("0x01"),
		NewAdmin:      common.HexToAddress("0x02"),
	}

	_, err := h.ingestor.ProcessBatch(context.Background(), []chain.Event{ev})
	require.NoError(t, err)

	entries := h.audit.byEvent("admin.transferred")
	require.Len(t, entries, 1)
	assert.Equal(t, ev.NewAdmin.Hex(), entries[0].Detail["new_admin"])

	count, _ := h.markets.Count(context.Background())
	assert.Zero(t, count)
}

func TestProcessBatch_AdvancesCheckpointOncePerBatch(t *testing.T) {
	h := newIngestHarness(t)

	events := []chain.Event{
		chain.AdminTransferred{Log: testLog(700, 0)},
		chain.AdminTransferred{Log: testLog(700, 5)},
		chain.AdminTransferred{Log: testLog(701, 2)},
	}

	n, err := h.ingestor.ProcessBatch(context.Background(), events)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	cp, err := h.checkpoints.Get(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, uint64(701), cp.BlockNumber)
	assert.Equal(t, uint(2), cp.LogIndex)
	assert.Equal(t, 1, h.checkpoints.sets)
}

func TestProcessBatch_RedeliveryIsIdempotent(t *testing.T) {
	h := newIngestHarness(t)

	trade := chain.OutcomeTokenTrade{
		Log:                 testLog(800, 0),
		Transactor:          common.HexToAddress("0xaa33"),
		OutcomeTokenAmounts: []*big.Int{big.NewInt(50), big.NewInt(0)},
		NetCost:             big.NewInt(75),
	}

	_, err := h.ingestor.ProcessBatch(context.Background(), []chain.Event{trade})
	require.NoError(t, err)

	txsBefore, _ := h.txs.ListByUser(context.Background(), trade.Transactor.Hex(), domain.ListOpts{})
	require.Len(t, txsBefore, 1)

	// Ledger rows and audit entries key on the deterministic record id, so
	// re-delivery replaces rather than duplicates.
	_, err = h.ingestor.ProcessBatch(context.Background(), []chain.Event{trade})
	require.NoError(t, err)

	txsAfter, _ := h.txs.ListByUser(context.Background(), trade.Transactor.Hex(), domain.ListOpts{})
	assert.Len(t, txsAfter, 1)
	assert.Len(t, h.audit.byEvent("trade"), 1)
}

func TestProcessBatch_EmptyIsNoOp(t *testing.T) {
	h := newIngestHarness(t)

	n, err := h.ingestor.ProcessBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, h.checkpoints.sets)
}
