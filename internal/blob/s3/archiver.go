package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver.
//
// The archiver only requires the time-ranged query methods it actually calls,
// not the full domain store interfaces. The Postgres stores satisfy these
// implicitly through their ListBefore methods.
// ---------------------------------------------------------------------------

// TransactionArchiveStore provides read access to ledger rows for archival.
type TransactionArchiveStore interface {
	// ListBefore returns all ledger rows with a block timestamp strictly
	// before the given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.UserTransaction, error)
}

// TransferArchiveStore provides read access to collateral transfers for
// archival.
type TransferArchiveStore interface {
	// ListBefore returns all transfers with a block timestamp strictly
	// before the given cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.CollateralTransfer, error)
}

// ---------------------------------------------------------------------------
// Archiver
// ---------------------------------------------------------------------------

// Archiver queries the ledger stores for old records, serializes them to
// JSONL, and uploads the result to S3.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type Archiver struct {
	writer       domain.BlobWriter
	transactions TransactionArchiveStore
	transfers    TransferArchiveStore
	audit        domain.AuditStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	transactions TransactionArchiveStore,
	transfers TransferArchiveStore,
	audit domain.AuditStore,
) *Archiver {
	return &Archiver{
		writer:       writer,
		transactions: transactions,
		transfers:    transfers,
		audit:        audit,
	}
}

// ArchiveTransactions queries all ledger rows before the cutoff, serializes
// them to JSONL, and uploads the file to S3 at
// archive/transactions/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *Archiver) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	txs, err := a.transactions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions query: %w", err)
	}
	if len(txs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(txs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions marshal: %w", err)
	}

	path := archivePath("transactions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions upload: %w", err)
	}

	count := int64(len(txs))

	if err := a.recordArchive(ctx, "archive.transactions", path, count, before); err != nil {
		return count, fmt.Errorf("s3blob: archive transactions audit: %w", err)
	}

	return count, nil
}

// ArchiveTransfers queries all collateral transfers before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/transfers/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *Archiver) ArchiveTransfers(ctx context.Context, before time.Time) (int64, error) {
	transfers, err := a.transfers.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers query: %w", err)
	}
	if len(transfers) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(transfers)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers marshal: %w", err)
	}

	path := archivePath("transfers", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive transfers upload: %w", err)
	}

	count := int64(len(transfers))

	if err := a.recordArchive(ctx, "archive.transfers", path, count, before); err != nil {
		return count, fmt.Errorf("s3blob: archive transfers audit: %w", err)
	}

	return count, nil
}

// recordArchive writes an audit row describing one completed archive upload.
// The row id is derived from the destination path, so repeating an archive
// run for the same month updates the same row.
func (a *Archiver) recordArchive(ctx context.Context, event, path string, count int64, before time.Time) error {
	return a.audit.Record(ctx, domain.AuditEntry{
		ID:    event + ":" + path,
		Event: event,
		Detail: map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		},
		CreatedAt: time.Now().UTC(),
	})
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/transactions/2025-01.jsonl
//	archive/transfers/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
