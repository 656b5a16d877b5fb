package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection
// pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Upsert writes the full state of one (user, market, outcome) position.
// The average cost is persisted as an exact numerator/denominator pair.
func (s *PositionStore) Upsert(ctx context.Context, pos *domain.UserPosition) error {
	const query = `
		INSERT INTO positions (
			user_addr, market_id, outcome_index, position_id,
			total_shares, total_invested, realized_pnl,
			avg_cost_num, avg_cost_den, last_updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10
		)
		ON CONFLICT (user_addr, market_id, outcome_index) DO UPDATE SET
			position_id     = EXCLUDED.position_id,
			total_shares    = EXCLUDED.total_shares,
			total_invested  = EXCLUDED.total_invested,
			realized_pnl    = EXCLUDED.realized_pnl,
			avg_cost_num    = EXCLUDED.avg_cost_num,
			avg_cost_den    = EXCLUDED.avg_cost_den,
			last_updated_at = EXCLUDED.last_updated_at`

	_, err := s.pool.Exec(ctx, query,
		pos.User, pos.MarketID, pos.OutcomeIndex, pos.PositionID,
		numericArg(pos.TotalShares), numericArg(pos.TotalInvested), numericArg(pos.RealizedPnL),
		numericArg(pos.AvgCost.Num()), numericArg(pos.AvgCost.Denom()),
		pos.LastUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", pos.Key(), err)
	}
	return nil
}

const positionCols = `user_addr, market_id, outcome_index, position_id,
	total_shares::text, total_invested::text, realized_pnl::text,
	avg_cost_num::text, avg_cost_den::text, last_updated_at`

// scanPosition scans a single position row.
func scanPosition(row pgx.Row) (*domain.UserPosition, error) {
	var (
		pos      domain.UserPosition
		shares   string
		invested string
		pnl      string
		costNum  string
		costDen  string
	)
	err := row.Scan(
		&pos.User, &pos.MarketID, &pos.OutcomeIndex, &pos.PositionID,
		&shares, &invested, &pnl,
		&costNum, &costDen, &pos.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if pos.TotalShares, err = parseNumeric(shares); err != nil {
		return nil, err
	}
	if pos.TotalInvested, err = parseNumeric(invested); err != nil {
		return nil, err
	}
	if pos.RealizedPnL, err = parseNumeric(pnl); err != nil {
		return nil, err
	}
	if pos.AvgCost, err = ratFromParts(costNum, costDen); err != nil {
		return nil, err
	}
	return &pos, nil
}

// Get retrieves one position by its composite key.
func (s *PositionStore) Get(ctx context.Context, user, marketID string, outcome int) (*domain.UserPosition, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+positionCols+` FROM positions
		WHERE user_addr = $1 AND market_id = $2 AND outcome_index = $3`,
		user, marketID, outcome)
	pos, err := scanPosition(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: get position %s: %w", domain.PositionKey(user, marketID, outcome), err)
	}
	return pos, nil
}

// ListByUser returns a user's positions across all markets.
func (s *PositionStore) ListByUser(ctx context.Context, user string, opts domain.ListOpts) ([]*domain.UserPosition, error) {
	return s.list(ctx, "user_addr", user, opts)
}

// ListByMarket returns all positions held in a market.
func (s *PositionStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]*domain.UserPosition, error) {
	return s.list(ctx, "market_id", marketID, opts)
}

func (s *PositionStore) list(ctx context.Context, col, val string, opts domain.ListOpts) ([]*domain.UserPosition, error) {
	query := `SELECT ` + positionCols + ` FROM positions WHERE ` + col + ` = $1`
	args := []any{val}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND last_updated_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND last_updated_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY last_updated_at DESC"

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
		return nil, fmt.Errorf("postgres: list positions by %s: %w", col, err)
	}
	defer rows.Close()

	var positions []*domain.UserPosition
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list positions rows: %w", err)
	}
	return positions, nil
}
