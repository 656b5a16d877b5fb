package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// TransactionStore defines the read operations the transaction handler
// requires.
type TransactionStore interface {
	GetByID(ctx context.Context, id string) (domain.UserTransaction, error)
	ListByUser(ctx context.Context, user string, opts domain.ListOpts) ([]domain.UserTransaction, error)
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.UserTransaction, error)
}

// TransactionHandler serves the normalized transaction ledger over HTTP.
type TransactionHandler struct {
	txs    TransactionStore
	logger *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler.
func NewTransactionHandler(txs TransactionStore, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		txs:    txs,
		logger: logger,
	}
}

type listTransactionsResponse struct {
	Transactions []domain.UserTransaction `json:"transactions"`
	Limit        int                      `json:"limit"`
	Offset       int                      `json:"offset"`
}

// ListTransactions returns ledger rows for a user or a market, newest-first.
// GET /api/transactions?user=0x...  or  GET /api/transactions?market=0x...
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	market := r.URL.Query().Get("market")
	if (user == "") == (market == "") {
		writeError(w, http.StatusBadRequest, "exactly one of user or market query parameter required")
		return
	}
	opts := parseListOpts(r)

	var (
		txs []domain.UserTransaction
		err error
	)
	if user != "" {
		txs, err = h.txs.ListByUser(r.Context(), user, opts)
	} else {
		txs, err = h.txs.ListByMarket(r.Context(), market, opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list transactions failed",
			slog.String("user", user),
			slog.String("market", market),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	if txs == nil {
		txs = []domain.UserTransaction{}
	}

	writeJSON(w, http.StatusOK, listTransactionsResponse{
		Transactions: txs,
		Limit:        opts.Limit,
		Offset:       opts.Offset,
	})
}

// GetTransaction returns a single ledger row by its record id.
// GET /api/transactions/{id}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id")
		return
	}

	tx, err := h.txs.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get transaction failed",
			slog.String("transaction_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}

	writeJSON(w, http.StatusOK, tx)
}
