package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// TransferStore defines the read operations the transfer handler requires.
type TransferStore interface {
	ListByUser(ctx context.Context, user string, opts domain.ListOpts) ([]domain.CollateralTransfer, error)
}

// TransferHandler serves collateral transfer records over HTTP.
type TransferHandler struct {
	transfers TransferStore
	logger    *slog.Logger
}

// NewTransferHandler creates a TransferHandler.
func NewTransferHandler(transfers TransferStore, logger *slog.Logger) *TransferHandler {
	return &TransferHandler{
		transfers: transfers,
		logger:    logger,
	}
}

type listTransfersResponse struct {
	Transfers []domain.CollateralTransfer `json:"transfers"`
	Limit     int                         `json:"limit"`
	Offset    int                         `json:"offset"`
}

// ListTransfers returns collateral transfers touching an address, as sender
// or recipient.
// GET /api/transfers?user=0x...
func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		writeError(w, http.StatusBadRequest, "user query parameter required")
		return
	}
	opts := parseListOpts(r)

	transfers, err := h.transfers.ListByUser(r.Context(), user, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list transfers failed",
			slog.String("user", user),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list transfers")
		return
	}

	if transfers == nil {
		transfers = []domain.CollateralTransfer{}
	}

	writeJSON(w, http.StatusOK, listTransfersResponse{
		Transfers: transfers,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}
