package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// archivePrefix scopes the browse endpoints to the archiver's output tree.
const archivePrefix = "archive/"

// ArchiveHandler serves the cold-storage archive listing and download
// endpoints backed by the blob store.
type ArchiveHandler struct {
	blobs  domain.BlobReader
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		blobs:  blobs,
		logger: logger,
	}
}

type listArchivesResponse struct {
	Archives []domain.BlobInfo `json:"archives"`
}

// ListArchives returns the stored archive objects, optionally narrowed by a
// sub-prefix such as "transactions" or "transfers".
// GET /api/archives?prefix=transactions
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	prefix := archivePrefix
	if sub := r.URL.Query().Get("prefix"); sub != "" {
		prefix += strings.TrimPrefix(sub, "/")
	}

	infos, err := h.blobs.List(r.Context(), prefix)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list archives failed",
			slog.String("prefix", prefix),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}

	if infos == nil {
		infos = []domain.BlobInfo{}
	}

	writeJSON(w, http.StatusOK, listArchivesResponse{Archives: infos})
}

// GetArchive streams one archived object.
// GET /api/archives/{path...}
func (h *ArchiveHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	rel := pathParam(r, "path")
	if rel == "" || strings.Contains(rel, "..") {
		writeError(w, http.StatusBadRequest, "invalid archive path")
		return
	}
	path := archivePrefix + rel

	ok, err := h.blobs.Exists(r.Context(), path)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: stat archive failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read archive")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "archive not found")
		return
	}

	body, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get archive failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to read archive")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
