package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mengo6988/foresight-graph/internal/chain"
	"github.com/mengo6988/foresight-graph/internal/domain"
)

// MarketDefaults carries the construction parameters for a market created on
// first sight, taken from the triggering event.
type MarketDefaults struct {
	CollateralToken string
	ConditionIDs    []string
	CreatedAt       time.Time
	CreatedTx       string

	// Placeholder marks markets fabricated because no creation event was
	// indexed for them. The record still satisfies ledger referential
	// integrity; it is filled in if the creation event arrives later.
	Placeholder bool
}

// Registry resolves market identifiers (contract address or condition id) to
// market records, creating them on demand. Lookups go through an optional
// read-through cache; writes go to the store and refresh the cache.
type Registry struct {
	store  domain.MarketStore
	cache  domain.MarketCache // nil disables caching
	policy domain.ResolutionPolicy
	logger *slog.Logger
}

// NewRegistry creates a Registry. policy is stamped onto every market the
// registry creates; it is the per-family resolution policy configured at
// deployment.
func NewRegistry(store domain.MarketStore, cache domain.MarketCache, policy domain.ResolutionPolicy, logger *slog.Logger) *Registry {
	return &Registry{
		store:  store,
		cache:  cache,
		policy: policy,
		logger: logger.With(slog.String("component", "market_registry")),
	}
}

// GetOrCreate returns the market with the given id, constructing and
// persisting one from defaults when it does not exist. Creation is immediate
// so later lookups in the same pass observe the record. It never fails for a
// well-formed key unless the store itself fails.
func (r *Registry) GetOrCreate(ctx context.Context, id string, d MarketDefaults) (domain.Market, error) {
	if m, err := r.lookup(ctx, id); err == nil {
		return m, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Market{}, fmt.Errorf("ledger: lookup market %s: %w", id, err)
	}

	m := domain.Market{
		ID:               id,
		Address:          id,
		CollateralToken:  d.CollateralToken,
		ConditionIDs:     d.ConditionIDs,
		PositionIDs:      []string{},
		Resolution:       domain.Unresolved(),
		ResolutionPolicy: r.policy,
		Placeholder:      d.Placeholder,
		CreatedAt:        d.CreatedAt,
		CreatedTx:        d.CreatedTx,
		UpdatedAt:        d.CreatedAt,
	}

	if err := r.Save(ctx, m); err != nil {
		return domain.Market{}, err
	}

	r.logger.InfoContext(ctx, "market created",
		slog.String("market", id),
		slog.Bool("placeholder", d.Placeholder),
	)
	return m, nil
}

// GetByCondition resolves a condition id to its market. Returns
// domain.ErrNotFound when no mapping exists.
func (r *Registry) GetByCondition(ctx context.Context, conditionID string) (domain.Market, error) {
	if r.cache != nil {
		if m, err := r.cache.GetByCondition(ctx, conditionID); err == nil {
			return m, nil
		}
	}

	m, err := r.store.GetByCondition(ctx, conditionID)
	if err != nil {
		return domain.Market{}, err
	}
	r.fillCache(ctx, m)
	return m, nil
}

// RegisterCreation records a factory creation event: the authoritative market
// record with its condition-id mappings. If a placeholder already exists for
// the address it is replaced in full.
func (r *Registry) RegisterCreation(ctx context.Context, ev chain.MarketCreation) (domain.Market, error) {
	id := ev.MarketMaker.Hex()

	conds := make([]string, len(ev.ConditionIDs))
	for i, c := range ev.ConditionIDs {
		conds[i] = c.Hex()
	}

	m := domain.Market{
		ID:               id,
		Address:          id,
		CollateralToken:  ev.CollateralToken.Hex(),
		ConditionIDs:     conds,
		PositionIDs:      []string{},
		Resolution:       domain.Unresolved(),
		ResolutionPolicy: r.policy,
		Creator:          ev.Creator.Hex(),
		InitialFunding:   ev.Funding,
		CreatedAt:        ev.BlockTimestamp,
		CreatedTx:        ev.TxHash.Hex(),
		UpdatedAt:        ev.BlockTimestamp,
	}

	// Preserve an existing resolution if the creation event arrives after a
	// placeholder was already resolved (out-of-band backfills).
	if prev, err := r.lookup(ctx, id); err == nil {
		m.Resolution = prev.Resolution
		m.PositionIDs = prev.PositionIDs
	}

	if err := r.Save(ctx, m); err != nil {
		return domain.Market{}, err
	}

	r.logger.InfoContext(ctx, "market registered",
		slog.String("market", id),
		slog.String("creator", m.Creator),
		slog.Int("conditions", len(conds)),
	)
	return m, nil
}

// EnsureOutcomeSlots grows the market's position-id list to cover at least n
// outcome slots. The list never shrinks. Unknown on-chain position ids are
// recorded as empty slots until a creation event supplies them.
func (r *Registry) EnsureOutcomeSlots(ctx context.Context, m domain.Market, n int) (domain.Market, error) {
	if len(m.PositionIDs) >= n {
		return m, nil
	}
	for len(m.PositionIDs) < n {
		m.PositionIDs = append(m.PositionIDs, "")
	}
	if err := r.Save(ctx, m); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

// Save persists the market and refreshes the cache.
func (r *Registry) Save(ctx context.Context, m domain.Market) error {
	if err := r.store.Upsert(ctx, m); err != nil {
		return fmt.Errorf("ledger: store market %s: %w", m.ID, err)
	}
	r.fillCache(ctx, m)
	return nil
}

func (r *Registry) lookup(ctx context.Context, id string) (domain.Market, error) {
	if r.cache != nil {
		if m, err := r.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}
	return r.store.GetByID(ctx, id)
}

// fillCache is best-effort: a cache failure never fails the operation.
func (r *Registry) fillCache(ctx context.Context, m domain.Market) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Set(ctx, m); err != nil {
		r.logger.WarnContext(ctx, "market cache set failed",
			slog.String("market", m.ID),
			slog.String("error", err.Error()),
		)
	}
}
