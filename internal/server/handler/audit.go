package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// AuditReader defines the read operations the audit handler requires.
type AuditReader interface {
	List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
}

// AuditHandler serves the protocol audit log over HTTP.
type AuditHandler struct {
	audit  AuditReader
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit AuditReader, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  audit,
		logger: logger,
	}
}

type listAuditResponse struct {
	Entries []domain.AuditEntry `json:"entries"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
}

// ListAudit returns audit entries newest-first with pagination and optional
// since/until filters.
// GET /api/audit?limit=50&since=2025-01-01T00:00:00Z
func (h *AuditHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list audit entries failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit entries")
		return
	}

	if entries == nil {
		entries = []domain.AuditEntry{}
	}

	writeJSON(w, http.StatusOK, listAuditResponse{
		Entries: entries,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}
