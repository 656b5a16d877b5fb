package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mengo6988/foresight-graph/internal/domain"
	"github.com/redis/go-redis/v9"
)

const marketTTL = 5 * time.Minute

// MarketCache implements domain.MarketCache using Redis hashes with JSON-
// serialized Market data and a secondary condition-to-market index.
//
// Key schema:
//
//	market:{id}           - hash with field "data" containing JSON
//	market:cond:{condID}  - string value of the market ID
type MarketCache struct {
	rdb *redis.Client
}

// NewMarketCache creates a MarketCache backed by the given Client.
func NewMarketCache(c *Client) *MarketCache {
	return &MarketCache{rdb: c.Underlying()}
}

func marketKey(id string) string       { return "market:" + id }
func marketCondKey(cond string) string { return "market:cond:" + cond }

// Set stores a Market in the cache with a 5-minute TTL. It also creates
// condition-to-market index entries for each of the market's condition IDs.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}

	key := marketKey(market.ID)

	pipe := mc.rdb.TxPipeline()
	pipe.HSet(ctx, key, "data", data)
	pipe.Expire(ctx, key, marketTTL)

	// Index every condition ID to this market.
	for _, cond := range market.ConditionIDs {
		if cond == "" {
			continue
		}
		pipe.Set(ctx, marketCondKey(cond), market.ID, marketTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get retrieves a Market by its ID from the cache.
// It returns domain.ErrNotFound when the key does not exist.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	data, err := mc.rdb.HGet(ctx, marketKey(id), "data").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}

	var market domain.Market
	if err := json.Unmarshal(data, &market); err != nil {
		return domain.Market{}, fmt.Errorf("redis: unmarshal market %s: %w", id, err)
	}
	return market, nil
}

// GetByCondition looks up a Market by one of its condition IDs.
// It returns domain.ErrNotFound if the condition mapping or market does not
// exist.
func (mc *MarketCache) GetByCondition(ctx context.Context, conditionID string) (domain.Market, error) {
	marketID, err := mc.rdb.Get(ctx, marketCondKey(conditionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("redis: get market by condition %s: %w", conditionID, err)
	}

	return mc.Get(ctx, marketID)
}

// Compile-time interface check.
var _ domain.MarketCache = (*MarketCache)(nil)
