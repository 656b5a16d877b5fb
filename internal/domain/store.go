package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// MarketStore persists markets and their condition-id mappings.
type MarketStore interface {
	// Upsert writes the market and its condition-id mapping rows.
	Upsert(ctx context.Context, m Market) error
	GetByID(ctx context.Context, id string) (Market, error)
	// GetByCondition resolves a condition id to its market. Returns
	// ErrNotFound when no mapping exists.
	GetByCondition(ctx context.Context, conditionID string) (Market, error)
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// UserTransactionStore persists the normalized transaction ledger. Upserting
// a row with an existing ID replaces it, which makes event re-delivery a
// no-op for this entity.
type UserTransactionStore interface {
	Upsert(ctx context.Context, tx UserTransaction) error
	GetByID(ctx context.Context, id string) (UserTransaction, error)
	ListByUser(ctx context.Context, user string, opts ListOpts) ([]UserTransaction, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]UserTransaction, error)
	ListBefore(ctx context.Context, before time.Time) ([]UserTransaction, error)
}

// PositionStore persists running user positions keyed by
// (user, market, outcome). The caller must serialize the read-modify-write
// cycle for a single key; the store itself only guarantees that one upsert is
// atomic.
type PositionStore interface {
	Get(ctx context.Context, user, marketID string, outcome int) (*UserPosition, error)
	Upsert(ctx context.Context, pos *UserPosition) error
	ListByUser(ctx context.Context, user string, opts ListOpts) ([]*UserPosition, error)
	ListByMarket(ctx context.Context, marketID string, opts ListOpts) ([]*UserPosition, error)
}

// TransferStore persists collateral transfer audit records.
type TransferStore interface {
	Upsert(ctx context.Context, t CollateralTransfer) error
	ListByUser(ctx context.Context, user string, opts ListOpts) ([]CollateralTransfer, error)
	ListBefore(ctx context.Context, before time.Time) ([]CollateralTransfer, error)
}

// AuditStore persists the append-only protocol audit log.
type AuditStore interface {
	Record(ctx context.Context, e AuditEntry) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// Checkpoint marks the last fully ingested event position.
type Checkpoint struct {
	BlockNumber uint64    `json:"block_number"`
	LogIndex    uint      `json:"log_index"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CheckpointStore persists named ingestion cursors.
type CheckpointStore interface {
	Get(ctx context.Context, name string) (Checkpoint, error)
	Set(ctx context.Context, name string, cp Checkpoint) error
}

// MarketCache is a read-through cache in front of MarketStore lookups.
// Writers refresh entries through Set.
type MarketCache interface {
	Get(ctx context.Context, id string) (Market, error)
	GetByCondition(ctx context.Context, conditionID string) (Market, error)
	Set(ctx context.Context, m Market) error
}

// Lock is a held distributed lock. Long-running holders renew it before the
// TTL lapses; Renew returns ErrLockLost once the lock has expired and may be
// held elsewhere.
type Lock interface {
	Renew(ctx context.Context, ttl time.Duration) error
	// Release frees the lock. Safe to call more than once.
	Release()
}

// LockManager provides distributed locks for multi-instance deployments.
// Acquire returns ErrLockHeld if another party holds the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RateLimiter bounds request rates per key.
type RateLimiter interface {
	// Allow reports whether a request for key is permitted under the
	// sliding-window limit, counting it when permitted.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventBus publishes ingestion results for live consumers (the WS hub).
type EventBus interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// BlobReader reads archived objects back from cold storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}
