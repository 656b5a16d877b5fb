package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// TransferStore implements domain.TransferStore using PostgreSQL.
type TransferStore struct {
	pool *pgxpool.Pool
}

// NewTransferStore creates a new TransferStore backed by the given connection
// pool.
func NewTransferStore(pool *pgxpool.Pool) *TransferStore {
	return &TransferStore{pool: pool}
}

// Upsert inserts or replaces a collateral transfer record.
func (s *TransferStore) Upsert(ctx context.Context, t domain.CollateralTransfer) error {
	const query = `
		INSERT INTO collateral_transfers (
			id, from_addr, to_addr, value, token, related_contract,
			block_number, block_timestamp, tx_hash
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9
		)
		ON CONFLICT (id) DO UPDATE SET
			from_addr        = EXCLUDED.from_addr,
			to_addr          = EXCLUDED.to_addr,
			value            = EXCLUDED.value,
			token            = EXCLUDED.token,
			related_contract = EXCLUDED.related_contract,
			block_number     = EXCLUDED.block_number,
			block_timestamp  = EXCLUDED.block_timestamp,
			tx_hash          = EXCLUDED.tx_hash`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.From, t.To, numericArg(t.Value), t.Token, t.RelatedContract,
		t.BlockNumber, t.BlockTimestamp, t.TxHash,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert transfer %s: %w", t.ID, err)
	}
	return nil
}

const transferCols = `id, from_addr, to_addr, value::text, token, related_contract,
	block_number, block_timestamp, tx_hash`

// scanTransfer scans a single transfer row.
func scanTransfer(row pgx.Row) (domain.CollateralTransfer, error) {
	var (
		t     domain.CollateralTransfer
		value string
	)
	err := row.Scan(
		&t.ID, &t.From, &t.To, &value, &t.Token, &t.RelatedContract,
		&t.BlockNumber, &t.BlockTimestamp, &t.TxHash,
	)
	if err != nil {
		return domain.CollateralTransfer{}, err
	}
	if t.Value, err = parseNumeric(value); err != nil {
		return domain.CollateralTransfer{}, err
	}
	return t, nil
}

// ListByUser returns transfers where the user is either counterparty, newest
// first.
func (s *TransferStore) ListByUser(ctx context.Context, user string, opts domain.ListOpts) ([]domain.CollateralTransfer, error) {
	query := `SELECT ` + transferCols + ` FROM collateral_transfers
		WHERE (from_addr = $1 OR to_addr = $1)`
	args := []any{user}
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

	query += " ORDER BY block_timestamp DESC"

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
		return nil, fmt.Errorf("postgres: list transfers for %s: %w", user, err)
	}
	defer rows.Close()

	var transfers []domain.CollateralTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transfers rows: %w", err)
	}
	return transfers, nil
}

// ListBefore returns every transfer older than the cutoff, oldest first.
func (s *TransferStore) ListBefore(ctx context.Context, before time.Time) ([]domain.CollateralTransfer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+transferCols+` FROM collateral_transfers
		 WHERE block_timestamp < $1
		 ORDER BY block_timestamp ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transfers before %s: %w", before, err)
	}
	defer rows.Close()

	var transfers []domain.CollateralTransfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list transfers before rows: %w", err)
	}
	return transfers, nil
}
