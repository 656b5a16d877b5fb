package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Upsert inserts or updates a market and rewrites its condition-id mapping
// rows in one transaction.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, address, collateral_token, condition_ids, position_ids,
			resolution_state, winning_outcome, resolution_policy,
			creator, initial_funding, placeholder,
			created_at, created_tx, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11,
			$12, $13, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			address           = EXCLUDED.address,
			collateral_token  = EXCLUDED.collateral_token,
			condition_ids     = EXCLUDED.condition_ids,
			position_ids      = EXCLUDED.position_ids,
			resolution_state  = EXCLUDED.resolution_state,
			winning_outcome   = EXCLUDED.winning_outcome,
			resolution_policy = EXCLUDED.resolution_policy,
			creator           = EXCLUDED.creator,
			initial_funding   = EXCLUDED.initial_funding,
			placeholder       = EXCLUDED.placeholder,
			created_at        = EXCLUDED.created_at,
			created_tx        = EXCLUDED.created_tx,
			updated_at        = NOW()`

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin upsert market %s: %w", m.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, query,
		m.ID, m.Address, m.CollateralToken,
		m.ConditionIDs, m.PositionIDs,
		string(m.Resolution.State), m.Resolution.WinningOutcome,
		string(m.ResolutionPolicy),
		m.Creator, numericArg(m.InitialFunding), m.Placeholder,
		m.CreatedAt, m.CreatedTx,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}

	for _, cond := range m.ConditionIDs {
		_, err = tx.Exec(ctx, `
			INSERT INTO market_conditions (condition_id, market_id)
			VALUES ($1, $2)
			ON CONFLICT (condition_id) DO UPDATE SET market_id = EXCLUDED.market_id`,
			cond, m.ID,
		)
		if err != nil {
			return fmt.Errorf("postgres: map condition %s -> market %s: %w", cond, m.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit upsert market %s: %w", m.ID, err)
	}
	return nil
}

const marketCols = `id, address, collateral_token, condition_ids, position_ids,
	resolution_state, winning_outcome, resolution_policy,
	creator, initial_funding::text, placeholder,
	created_at, created_tx, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m       domain.Market
		state   string
		policy  string
		funding *string
	)
	err := row.Scan(
		&m.ID, &m.Address, &m.CollateralToken,
		&m.ConditionIDs, &m.PositionIDs,
		&state, &m.Resolution.WinningOutcome, &policy,
		&m.Creator, &funding, &m.Placeholder,
		&m.CreatedAt, &m.CreatedTx, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Resolution.State = domain.ResolutionState(state)
	m.ResolutionPolicy = domain.ResolutionPolicy(policy)
	if funding != nil {
		m.InitialFunding, err = parseNumeric(*funding)
		if err != nil {
			return domain.Market{}, err
		}
	}
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetByCondition resolves a condition id to its market through the mapping
// table.
func (s *MarketStore) GetByCondition(ctx context.Context, conditionID string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+marketCols+` FROM markets
		WHERE id = (SELECT market_id FROM market_conditions WHERE condition_id = $1)`,
		conditionID)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by condition %s: %w", conditionID, err)
	}
	return m, nil
}

// List returns markets with pagination and optional time filtering, newest
// first.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
