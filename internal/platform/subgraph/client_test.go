package subgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengo6988/foresight-graph/internal/chain"
	"github.com/mengo6988/foresight-graph/internal/domain"
)

// fakeIndexer serves canned rows per collection with graph-node paging
// semantics: cursor queries order by block only, block queries order by log
// index, and `first` truncates the page.
type fakeIndexer struct {
	rows map[string][]map[string]any
}

func rowCoords(row map[string]any) (uint64, uint64) {
	b, _ := strconv.ParseUint(row["blockNumber"].(string), 10, 64)
	l, _ := strconv.ParseUint(row["logIndex"].(string), 10, 64)
	return b, l
}

func (f *fakeIndexer) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Error(err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		entity := ""
		for _, col := range collections {
			if strings.Contains(req.Query, col.entity+"(") {
				entity = col.entity
			}
		}
		if entity == "" {
			t.Error("query names no known collection")
			http.Error(w, "unknown collection", http.StatusBadRequest)
			return
		}

		first := int(req.Variables["first"].(float64))
		var page []map[string]any

		if strings.Contains(req.Query, "logIndex_gte") {
			block, _ := strconv.ParseUint(req.Variables["block"].(string), 10, 64)
			fromLog, _ := strconv.ParseUint(req.Variables["fromLog"].(string), 10, 64)
			for _, row := range f.rows[entity] {
				b, l := rowCoords(row)
				if b == block && l >= fromLog {
					page = append(page, row)
				}
			}
			sort.Slice(page, func(i, j int) bool {
				_, a := rowCoords(page[i])
				_, b := rowCoords(page[j])
				return a < b
			})
		} else {
			fromBlock, _ := strconv.ParseUint(req.Variables["fromBlock"].(string), 10, 64)
			fromLog, _ := strconv.ParseUint(req.Variables["fromLog"].(string), 10, 64)
			for _, row := range f.rows[entity] {
				b, l := rowCoords(row)
				if b > fromBlock || (b == fromBlock && l > fromLog) {
					page = append(page, row)
				}
			}
			sort.Slice(page, func(i, j int) bool {
				a, _ := rowCoords(page[i])
				b, _ := rowCoords(page[j])
				return a < b
			})
		}

		if len(page) > first {
			page = page[:first]
		}
		resp := map[string]any{"data": map[string]any{entity: page}}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Error(err)
		}
	}
}

func newTestClient(t *testing.T, idx *fakeIndexer) *Client {
	t.Helper()
	srv := httptest.NewServer(idx.handler(t))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "")
}

func envelope(block, logIdx uint64) map[string]any {
	return map[string]any{
		"blockNumber":     strconv.FormatUint(block, 10),
		"blockTimestamp":  "1750000000",
		"transactionHash": fmt.Sprintf("0x%064x", block*1000+logIdx),
		"logIndex":        strconv.FormatUint(logIdx, 10),
		"address":         "0x00000000000000000000000000000000000000aa",
	}
}

func tradeRow(block, logIdx uint64) map[string]any {
	row := envelope(block, logIdx)
	row["transactor"] = "0x00000000000000000000000000000000000000b1"
	row["outcomeTokenAmounts"] = []string{"100", "0"}
	row["outcomeTokenNetCost"] = "100"
	row["marketFees"] = "0"
	return row
}

func resolutionRow(block, logIdx uint64) map[string]any {
	row := envelope(block, logIdx)
	row["conditionId"] = fmt.Sprintf("0x%064x", 0xc1)
	row["payoutNumerators"] = []string{"0", "1"}
	return row
}

func adminRow(block, logIdx uint64) map[string]any {
	row := envelope(block, logIdx)
	row["previousAdmin"] = "0x0000000000000000000000000000000000000001"
	row["newAdmin"] = "0x0000000000000000000000000000000000000002"
	return row
}

// drain replays the poller's fetch-process-checkpoint loop: fetch, checkpoint
// at the batch's last event, repeat until empty.
func drain(t *testing.T, c *Client, limit int) []chain.Event {
	t.Helper()
	var all []chain.Event
	cp := domain.Checkpoint{}
	for {
		batch, err := c.FetchEvents(context.Background(), cp, limit)
		require.NoError(t, err)
		if len(batch) == 0 {
			return all
		}
		all = append(all, batch...)
		last := batch[len(batch)-1].EventLog()
		cp = domain.Checkpoint{BlockNumber: last.BlockNumber, LogIndex: last.LogIndex}
	}
}

func TestFetchEventsMergesCollectionsInOrder(t *testing.T) {
	idx := &fakeIndexer{rows: map[string][]map[string]any{
		"adminTransferreds":     {adminRow(5, 0), adminRow(7, 0)},
		"ammOutcomeTokenTrades": {tradeRow(6, 0)},
	}}
	c := newTestClient(t, idx)

	events, err := c.FetchEvents(context.Background(), domain.Checkpoint{}, 10)
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, chain.KindAdmin, events[0].Kind())
	assert.Equal(t, chain.KindTrade, events[1].Kind())
	assert.Equal(t, chain.KindAdmin, events[2].Kind())
	assert.Equal(t, uint64(5), events[0].EventLog().BlockNumber)
	assert.Equal(t, uint64(6), events[1].EventLog().BlockNumber)
	assert.Equal(t, uint64(7), events[2].EventLog().BlockNumber)
}

func TestFetchEventsResumesWithinBlock(t *testing.T) {
	idx := &fakeIndexer{rows: map[string][]map[string]any{
		"adminTransferreds": {adminRow(50, 1), adminRow(50, 2), adminRow(50, 3)},
	}}
	c := newTestClient(t, idx)

	events, err := c.FetchEvents(context.Background(), domain.Checkpoint{BlockNumber: 50, LogIndex: 1}, 10)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, uint(2), events[0].EventLog().LogIndex)
	assert.Equal(t, uint(3), events[1].EventLog().LogIndex)
}

// One collection's page truncates at an early block while another collection
// has a row far ahead. The batch must stop before the truncated collection's
// last block so checkpointing at the batch end never skips undelivered rows.
func TestFetchEventsWithholdsPastTruncatedPage(t *testing.T) {
	idx := &fakeIndexer{rows: map[string][]map[string]any{
		"ammOutcomeTokenTrades": {tradeRow(100, 0), tradeRow(101, 0), tradeRow(102, 0)},
		"conditionResolutions":  {resolutionRow(999, 0)},
	}}
	c := newTestClient(t, idx)

	events, err := c.FetchEvents(context.Background(), domain.Checkpoint{}, 2)
	require.NoError(t, err)

	// The trades page is full at block 101, so only block 100 is known
	// complete across collections.
	require.Len(t, events, 1)
	assert.Equal(t, uint64(100), events[0].EventLog().BlockNumber)

	// Polling to exhaustion delivers every event exactly once, in order.
	all := drain(t, c, 2)
	require.Len(t, all, 4)
	wantBlocks := []uint64{100, 101, 102, 999}
	for i, ev := range all {
		assert.Equal(t, wantBlocks[i], ev.EventLog().BlockNumber)
	}
	assert.Equal(t, chain.KindResolution, all[3].Kind())
}

// A block denser than the page size cannot be cut at a block boundary; it is
// drained in full by log index so the cursor can move past it.
func TestFetchEventsDrainsDenseBlock(t *testing.T) {
	idx := &fakeIndexer{rows: map[string][]map[string]any{
		"adminTransferreds": {adminRow(50, 1), adminRow(50, 2), adminRow(50, 3)},
		"conditionResolutions": {
			resolutionRow(50, 4),
			resolutionRow(60, 0),
		},
	}}
	c := newTestClient(t, idx)

	events, err := c.FetchEvents(context.Background(), domain.Checkpoint{}, 2)
	require.NoError(t, err)

	// All of block 50, nothing of block 60.
	require.Len(t, events, 4)
	for i, ev := range events {
		assert.Equal(t, uint64(50), ev.EventLog().BlockNumber)
		assert.Equal(t, uint(i+1), ev.EventLog().LogIndex)
	}

	next, err := c.FetchEvents(context.Background(), domain.Checkpoint{BlockNumber: 50, LogIndex: 4}, 2)
	require.NoError(t, err)
	require.Len(t, next, 1)
	assert.Equal(t, uint64(60), next[0].EventLog().BlockNumber)
}

// A dense block at the cursor block itself must resume after the cursor's
// log index, not redeliver it.
func TestFetchEventsDrainsDenseBlockAfterCursor(t *testing.T) {
	rows := make([]map[string]any, 0, 5)
	for i := uint64(0); i < 5; i++ {
		rows = append(rows, adminRow(80, i))
	}
	idx := &fakeIndexer{rows: map[string][]map[string]any{"adminTransferreds": rows}}
	c := newTestClient(t, idx)

	events, err := c.FetchEvents(context.Background(), domain.Checkpoint{BlockNumber: 80, LogIndex: 1}, 2)
	require.NoError(t, err)

	require.Len(t, events, 3)
	assert.Equal(t, uint(2), events[0].EventLog().LogIndex)
	assert.Equal(t, uint(4), events[2].EventLog().LogIndex)
}

func TestFetchEventsEmptyFeed(t *testing.T) {
	c := newTestClient(t, &fakeIndexer{rows: map[string][]map[string]any{}})

	events, err := c.FetchEvents(context.Background(), domain.Checkpoint{}, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFetchEventsSurfacesGraphQLError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"indexer exploded"}]}`)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "")

	_, err := c.FetchEvents(context.Background(), domain.Checkpoint{}, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "indexer exploded")
}

func TestDoQuerySendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data":{}}`)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "sekrit")

	_, err := c.FetchLatestBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer sekrit", gotAuth)
}
