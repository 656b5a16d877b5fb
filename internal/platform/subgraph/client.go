// Package subgraph is a GraphQL client for the protocol's subgraph indexer.
// It pages through trade, redemption, resolution, creation, and admin events
// in (block, log-index) order so the pipeline can replay them as a single
// ordered stream.
package subgraph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mengo6988/foresight-graph/internal/chain"
	"github.com/mengo6988/foresight-graph/internal/domain"
)

// Client is a GraphQL client for the subgraph endpoint.
type Client struct {
	graphqlURL string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new subgraph client.
//
// graphqlURL is the subgraph endpoint, e.g.
// "https://api.goldsky.com/api/public/.../subgraphs/lslmsr-amm/gn".
func NewClient(graphqlURL, apiKey string) *Client {
	return &Client{
		graphqlURL: graphqlURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// graphqlRequest is the standard GraphQL request envelope.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// graphqlResponse is the standard GraphQL response envelope.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// logFields is the envelope fragment shared by every event collection.
type logFields struct {
	BlockNumber     string `json:"blockNumber"`
	BlockTimestamp  string `json:"blockTimestamp"`
	TransactionHash string `json:"transactionHash"`
	LogIndex        string `json:"logIndex"`
	Address         string `json:"address"`
}

const logSelection = `
				blockNumber
				blockTimestamp
				transactionHash
				logIndex
				address`

// collection binds one subgraph entity to its payload selection and row
// decoder. All five are fetched with the same cursor queries.
type collection struct {
	entity string
	fields string
	decode func(l chain.Log, row json.RawMessage) (chain.Event, error)
}

var collections = []collection{
	{
		entity: "ammOutcomeTokenTrades",
		fields: `
				transactor
				outcomeTokenAmounts
				outcomeTokenNetCost
				marketFees`,
		decode: decodeTradeRow,
	},
	{
		entity: "payoutRedemptions",
		fields: `
				redeemer
				collateralToken
				conditionId
				payout`,
		decode: decodeRedemptionRow,
	},
	{
		entity: "conditionResolutions",
		fields: `
				conditionId
				payoutNumerators`,
		decode: decodeResolutionRow,
	},
	{
		entity: "marketMakerCreations",
		fields: `
				creator
				marketMaker
				collateralToken
				conditionIds
				fee
				funding`,
		decode: decodeCreationRow,
	},
	{
		entity: "adminTransferreds",
		fields: `
				previousAdmin
				newAdmin`,
		decode: decodeAdminRow,
	},
}

// cursorQueryTmpl pages a collection strictly after an exact (block, logIndex)
// cursor. Ordering is by block only; within a block the indexer's order is
// unspecified, so a page cut inside its last block may omit rows of that
// block. FetchEvents compensates by never emitting the last block of a full
// page.
const cursorQueryTmpl = `
	query Page($fromBlock: BigInt!, $fromLog: BigInt!, $first: Int!) {
		%s(
			first: $first
			orderBy: blockNumber
			orderDirection: asc
			where: { or: [
				{ blockNumber_gt: $fromBlock }
				{ blockNumber: $fromBlock, logIndex_gt: $fromLog }
			] }
		) {%s%s
		}
	}
`

// blockQueryTmpl pages the rows of one block by log index. logIndex is unique
// within a block, so truncation here is always a clean prefix.
const blockQueryTmpl = `
	query Block($block: BigInt!, $fromLog: BigInt!, $first: Int!) {
		%s(
			first: $first
			orderBy: logIndex
			orderDirection: asc
			where: { blockNumber: $block, logIndex_gte: $fromLog }
		) {%s%s
		}
	}
`

// FetchEvents returns protocol events strictly after the given checkpoint,
// merged across collections and sorted by (block, log index). The batch is a
// gap-free prefix of the stream: the caller may checkpoint at its last event
// and nothing before that point will ever be missing. limit bounds each
// collection's page size; callers keep polling until the result is empty.
func (c *Client) FetchEvents(ctx context.Context, after domain.Checkpoint, limit int) ([]chain.Event, error) {
	var merged []chain.Event

	// A collection whose page came back full may have been cut inside its
	// last block. Everything from that block on is withheld and refetched on
	// the next call, so the batch never skips past undelivered rows.
	truncated := false
	var minLast uint64

	for _, col := range collections {
		events, err := c.fetchPage(ctx, col, after, limit)
		if err != nil {
			return nil, err
		}
		merged = append(merged, events...)
		if len(events) == limit {
			last := events[len(events)-1].EventLog().BlockNumber
			if !truncated || last < minLast {
				minLast = last
			}
			truncated = true
		}
	}

	sortEvents(merged)
	if !truncated {
		return merged, nil
	}

	kept := merged[:0]
	for _, ev := range merged {
		if ev.EventLog().BlockNumber < minLast {
			kept = append(kept, ev)
		}
	}
	if len(kept) > 0 {
		return kept, nil
	}

	// A single block holds a full page on its own, so the block-level cut
	// left nothing. Drain that one block completely, paging by log index,
	// so the cursor can move past it.
	fromLog := uint64(0)
	if minLast == after.BlockNumber {
		fromLog = uint64(after.LogIndex) + 1
	}
	return c.fetchBlock(ctx, minLast, fromLog, limit)
}

// fetchPage fetches one cursor-ordered page of a collection.
func (c *Client) fetchPage(ctx context.Context, col collection, after domain.Checkpoint, limit int) ([]chain.Event, error) {
	query := fmt.Sprintf(cursorQueryTmpl, col.entity, logSelection, col.fields)
	return c.fetchRows(ctx, col, query, map[string]any{
		"fromBlock": strconv.FormatUint(after.BlockNumber, 10),
		"fromLog":   strconv.FormatUint(uint64(after.LogIndex), 10),
		"first":     limit,
	})
}

// fetchBlock returns every event of one block with log index >= fromLog,
// across all collections, sorted by log index.
func (c *Client) fetchBlock(ctx context.Context, block, fromLog uint64, limit int) ([]chain.Event, error) {
	var merged []chain.Event

	for _, col := range collections {
		query := fmt.Sprintf(blockQueryTmpl, col.entity, logSelection, col.fields)
		start := fromLog
		for {
			events, err := c.fetchRows(ctx, col, query, map[string]any{
				"block":   strconv.FormatUint(block, 10),
				"fromLog": strconv.FormatUint(start, 10),
				"first":   limit,
			})
			if err != nil {
				return nil, err
			}
			merged = append(merged, events...)
			if len(events) < limit {
				break
			}
			start = uint64(events[len(events)-1].EventLog().LogIndex) + 1
		}
	}

	sortEvents(merged)
	return merged, nil
}

// fetchRows executes one collection query and decodes its rows.
func (c *Client) fetchRows(ctx context.Context, col collection, query string, vars map[string]any) ([]chain.Event, error) {
	respData, err := c.doQuery(ctx, query, vars)
	if err != nil {
		return nil, fmt.Errorf("subgraph: fetch %s: %w", col.entity, err)
	}

	var payload map[string][]json.RawMessage
	if err := json.Unmarshal(respData, &payload); err != nil {
		return nil, fmt.Errorf("subgraph: decode %s: %w", col.entity, err)
	}

	rows := payload[col.entity]
	events := make([]chain.Event, 0, len(rows))
	for _, raw := range rows {
		var lf logFields
		if err := json.Unmarshal(raw, &lf); err != nil {
			return nil, fmt.Errorf("subgraph: decode %s row: %w", col.entity, err)
		}
		l, err := parseLog(lf)
		if err != nil {
			return nil, err
		}
		ev, err := col.decode(l, raw)
		if err != nil {
			return nil, fmt.Errorf("subgraph: %s at %s/%s: %w", col.entity, lf.TransactionHash, lf.LogIndex, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func sortEvents(events []chain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].EventLog(), events[j].EventLog()
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		return a.LogIndex < b.LogIndex
	})
}

func decodeTradeRow(l chain.Log, raw json.RawMessage) (chain.Event, error) {
	var row struct {
		Transactor          string   `json:"transactor"`
		OutcomeTokenAmounts []string `json:"outcomeTokenAmounts"`
		OutcomeTokenNetCost string   `json:"outcomeTokenNetCost"`
		MarketFees          string   `json:"marketFees"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return chain.DecodeTrade(l, row.Transactor, row.OutcomeTokenAmounts, row.OutcomeTokenNetCost, row.MarketFees)
}

func decodeRedemptionRow(l chain.Log, raw json.RawMessage) (chain.Event, error) {
	var row struct {
		Redeemer        string `json:"redeemer"`
		CollateralToken string `json:"collateralToken"`
		ConditionID     string `json:"conditionId"`
		Payout          string `json:"payout"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return chain.DecodeRedemption(l, row.Redeemer, row.CollateralToken, row.ConditionID, row.Payout)
}

func decodeResolutionRow(l chain.Log, raw json.RawMessage) (chain.Event, error) {
	var row struct {
		ConditionID      string   `json:"conditionId"`
		PayoutNumerators []string `json:"payoutNumerators"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return chain.DecodeResolution(l, row.ConditionID, row.PayoutNumerators)
}

func decodeCreationRow(l chain.Log, raw json.RawMessage) (chain.Event, error) {
	var row struct {
		Creator         string   `json:"creator"`
		MarketMaker     string   `json:"marketMaker"`
		CollateralToken string   `json:"collateralToken"`
		ConditionIDs    []string `json:"conditionIds"`
		Fee             string   `json:"fee"`
		Funding         string   `json:"funding"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return chain.DecodeCreation(l, row.Creator, row.MarketMaker, row.CollateralToken, row.ConditionIDs, row.Fee, row.Funding)
}

func decodeAdminRow(l chain.Log, raw json.RawMessage) (chain.Event, error) {
	var row struct {
		PreviousAdmin string `json:"previousAdmin"`
		NewAdmin      string `json:"newAdmin"`
	}
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return chain.DecodeAdmin(l, row.PreviousAdmin, row.NewAdmin)
}

// FetchLatestBlock returns the latest block number indexed by the subgraph,
// useful for monitoring indexing lag.
func (c *Client) FetchLatestBlock(ctx context.Context) (uint64, error) {
	query := `
		query Meta {
			_meta {
				block {
					number
				}
			}
		}
	`

	respData, err := c.doQuery(ctx, query, nil)
	if err != nil {
		return 0, fmt.Errorf("subgraph: fetch latest block: %w", err)
	}

	var result struct {
		Meta struct {
			Block struct {
				Number uint64 `json:"number"`
			} `json:"block"`
		} `json:"_meta"`
	}
	if err := json.Unmarshal(respData, &result); err != nil {
		return 0, fmt.Errorf("subgraph: decode latest block: %w", err)
	}
	return result.Meta.Block.Number, nil
}

func parseLog(f logFields) (chain.Log, error) {
	l, err := chain.ParseLog(f.BlockNumber, f.BlockTimestamp, f.TransactionHash, f.LogIndex, f.Address)
	if err != nil {
		return chain.Log{}, fmt.Errorf("subgraph: envelope at %s/%s: %w", f.TransactionHash, f.LogIndex, err)
	}
	return l, nil
}

// doQuery executes a GraphQL request and returns the raw data payload.
func (c *Client) doQuery(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", gqlResp.Errors[0].Message)
	}
	return gqlResp.Data, nil
}
