package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// TransactionStore implements domain.UserTransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given
// connection pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Upsert inserts or replaces a single ledger row. IDs are deterministic per
// source event, so re-delivery lands on the same row.
func (s *TransactionStore) Upsert(ctx context.Context, tx domain.UserTransaction) error {
	const query = `
		INSERT INTO user_transactions (
			id, user_addr, market_id, kind,
			collateral_amount, outcome_token_amount, approx_token_amount,
			block_number, block_timestamp, tx_hash, log_index
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10, $11
		)
		ON CONFLICT (id) DO UPDATE SET
			user_addr            = EXCLUDED.user_addr,
			market_id            = EXCLUDED.market_id,
			kind                 = EXCLUDED.kind,
			collateral_amount    = EXCLUDED.collateral_amount,
			outcome_token_amount = EXCLUDED.outcome_token_amount,
			approx_token_amount  = EXCLUDED.approx_token_amount,
			block_number         = EXCLUDED.block_number,
			block_timestamp      = EXCLUDED.block_timestamp,
			tx_hash              = EXCLUDED.tx_hash,
			log_index            = EXCLUDED.log_index`

	_, err := s.pool.Exec(ctx, query,
		tx.ID, tx.User, tx.MarketID, string(tx.Kind),
		numericArg(tx.CollateralAmount), numericArg(tx.OutcomeTokenAmount), tx.ApproxTokenAmount,
		tx.BlockNumber, tx.BlockTimestamp, tx.TxHash, tx.LogIndex,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert transaction %s: %w", tx.ID, err)
	}
	return nil
}

const txCols = `id, user_addr, market_id, kind,
	collateral_amount::text, outcome_token_amount::text, approx_token_amount,
	block_number, block_timestamp, tx_hash, log_index`

// scanTransaction scans a single ledger row.
func scanTransaction(row pgx.Row) (domain.UserTransaction, error) {
	var (
		tx         domain.UserTransaction
		kind       string
		collateral string
		tokens     string
	)
	err := row.Scan(
		&tx.ID, &tx.User, &tx.MarketID, &kind,
		&collateral, &tokens, &tx.ApproxTokenAmount,
		&tx.BlockNumber, &tx.BlockTimestamp, &tx.TxHash, &tx.LogIndex,
	)
	if err != nil {
		return domain.UserTransaction{}, err
	}
	tx.Kind = domain.TransactionKind(kind)
	if tx.CollateralAmount, err = parseNumeric(collateral); err != nil {
		return domain.UserTransaction{}, err
	}
	if tx.OutcomeTokenAmount, err = parseNumeric(tokens); err != nil {
		return domain.UserTransaction{}, err
	}
	return tx, nil
}

// GetByID retrieves a ledger row by its deterministic id.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.UserTransaction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+txCols+` FROM user_transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.UserTransaction{}, domain.ErrNotFound
		}
		return domain.UserTransaction{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return tx, nil
}

// ListByUser returns a user's ledger rows, newest first.
func (s *TransactionStore) ListByUser(ctx context.Context, user string, opts domain.ListOpts) ([]domain.UserTransaction, error) {
	return s.list(ctx, "user_addr", user, opts)
}

// ListByMarket returns a market's ledger rows, newest first.
func (s *TransactionStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.UserTransaction, error) {
	return s.list(ctx, "market_id", marketID, opts)
}

func (s *TransactionStore) list(ctx context.Context, col, val string, opts domain.ListOpts) ([]domain.UserTransaction, error) {
	query := `SELECT ` + txCols + ` FROM user_transactions WHERE ` + col + ` = $1`
	args := []any{val}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND block_timestamp >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND block_timestamp <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY block_timestamp DESC, log_index DESC"

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
		return nil, fmt.Errorf("postgres: list transactions by %s: %w", col, err)
	}
	defer rows.Close()

	var txs []domain.UserTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transactions rows: %w", err)
	}
	return txs, nil
}

// ListBefore returns every ledger row older than the cutoff, oldest first.
// The archiver uses this to page cold rows out to object storage.
func (s *TransactionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.UserTransaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+txCols+` FROM user_transactions
		 WHERE block_timestamp < $1
		 ORDER BY block_timestamp ASC, log_index ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions before %s: %w", before, err)
	}
	defer rows.Close()

	var txs []domain.UserTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transactions before rows: %w", err)
	}
	return txs, nil
}
