package s3blob

import (
	"bytes"
	"context"
	"io"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

type fakeBlobWriter struct {
	paths    []string
	payloads map[string][]byte
	types    map[string]string
}

func newFakeBlobWriter() *fakeBlobWriter {
	return &fakeBlobWriter{
		payloads: map[string][]byte{},
		types:    map[string]string{},
	}
}

func (w *fakeBlobWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.paths = append(w.paths, path)
	w.payloads[path] = buf
	w.types[path] = contentType
	return nil
}

func (w *fakeBlobWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "")
}

type fakeTxArchive struct{ rows []domain.UserTransaction }

func (f *fakeTxArchive) ListBefore(context.Context, time.Time) ([]domain.UserTransaction, error) {
	return f.rows, nil
}

type fakeTransferArchive struct{ rows []domain.CollateralTransfer }

func (f *fakeTransferArchive) ListBefore(context.Context, time.Time) ([]domain.CollateralTransfer, error) {
	return f.rows, nil
}

type fakeAudit struct{ entries []domain.AuditEntry }

func (f *fakeAudit) Record(_ context.Context, e domain.AuditEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return f.entries, nil
}

func TestArchiveTransactionsUploadsJSONL(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	writer := newFakeBlobWriter()
	audit := &fakeAudit{}
	txs := &fakeTxArchive{rows: []domain.UserTransaction{
		{
			ID:                 "tx-1",
			User:               "0xaa",
			MarketID:           "0xm1",
			Kind:               domain.TransactionBuy,
			CollateralAmount:   big.NewInt(100),
			OutcomeTokenAmount: big.NewInt(40),
			BlockTimestamp:     cutoff.Add(-time.Hour),
		},
		{
			ID:                 "tx-2",
			User:               "0xbb",
			MarketID:           "0xm1",
			Kind:               domain.TransactionSell,
			CollateralAmount:   big.NewInt(55),
			OutcomeTokenAmount: big.NewInt(20),
			BlockTimestamp:     cutoff.Add(-2 * time.Hour),
		},
	}}

	arch := NewArchiver(writer, txs, &fakeTransferArchive{}, audit)

	count, err := arch.ArchiveTransactions(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.Len(t, writer.paths, 1)
	path := writer.paths[0]
	assert.Equal(t, "archive/transactions/2025-06.jsonl", path)
	assert.Equal(t, "application/x-ndjson", writer.types[path])

	lines := bytes.Split(bytes.TrimRight(writer.payloads[path], "\n"), []byte("\n"))
	assert.Len(t, lines, 2)
	assert.True(t, strings.Contains(string(lines[0]), `"tx-1"`))

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "archive.transactions", audit.entries[0].Event)
	assert.Equal(t, "archive.transactions:"+path, audit.entries[0].ID)
}

func TestArchiveTransactionsEmptyIsNoOp(t *testing.T) {
	writer := newFakeBlobWriter()
	audit := &fakeAudit{}
	arch := NewArchiver(writer, &fakeTxArchive{}, &fakeTransferArchive{}, audit)

	count, err := arch.ArchiveTransactions(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.paths)
	assert.Empty(t, audit.entries)
}

func TestArchiveTransfersUploadsJSONL(t *testing.T) {
	cutoff := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	writer := newFakeBlobWriter()
	transfers := &fakeTransferArchive{rows: []domain.CollateralTransfer{
		{
			ID:    "tr-1",
			From:  domain.ZeroAddress,
			To:    "0xaa",
			Value: big.NewInt(77),
			Token: "0xusdc",
		},
	}}

	arch := NewArchiver(writer, &fakeTxArchive{}, transfers, &fakeAudit{})

	count, err := arch.ArchiveTransfers(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, writer.paths, 1)
	assert.Equal(t, "archive/transfers/2025-03.jsonl", writer.paths[0])
}
