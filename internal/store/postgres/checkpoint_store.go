package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// CheckpointStore implements domain.CheckpointStore using PostgreSQL.
type CheckpointStore struct {
	pool *pgxpool.Pool
}

// NewCheckpointStore creates a new CheckpointStore backed by the given
// connection pool.
func NewCheckpointStore(pool *pgxpool.Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

// Get returns the named ingestion cursor, or the zero checkpoint when the
// cursor has never been written.
func (s *CheckpointStore) Get(ctx context.Context, name string) (domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := s.pool.QueryRow(ctx,
		`SELECT block_number, log_index, updated_at FROM checkpoints WHERE name = $1`,
		name,
	).Scan(&cp.BlockNumber, &cp.LogIndex, &cp.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Checkpoint{}, nil
		}
		return domain.Checkpoint{}, fmt.Errorf("postgres: get checkpoint %s: %w", name, err)
	}
	return cp, nil
}

// Set writes the named ingestion cursor.
func (s *CheckpointStore) Set(ctx context.Context, name string, cp domain.Checkpoint) error {
	const query = `
		INSERT INTO checkpoints (name, block_number, log_index, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (name) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			log_index    = EXCLUDED.log_index,
			updated_at   = NOW()`

	_, err := s.pool.Exec(ctx, query, name, cp.BlockNumber, cp.LogIndex)
	if err != nil {
		return fmt.Errorf("postgres: set checkpoint %s: %w", name, err)
	}
	return nil
}
