package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// CheckpointReader reads the ingestion cursor for status reporting.
type CheckpointReader interface {
	Get(ctx context.Context, name string) (domain.Checkpoint, error)
}

// StatusHandler reports the service mode and ingestion progress.
type StatusHandler struct {
	mode           string
	checkpointName string
	checkpoints    CheckpointReader // nil in serve-only deployments without ingestion state
	startedAt      time.Time
	logger         *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode, checkpointName string, checkpoints CheckpointReader, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		mode:           mode,
		checkpointName: checkpointName,
		checkpoints:    checkpoints,
		startedAt:      time.Now().UTC(),
		logger:         logger,
	}
}

// GetStatus responds with the service mode, uptime, and the last fully
// ingested event position.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}

	if h.checkpoints != nil {
		cp, err := h.checkpoints.Get(r.Context(), h.checkpointName)
		if err != nil {
			h.logger.ErrorContext(r.Context(), "handler: read checkpoint failed",
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to read ingestion status")
			return
		}
		resp["checkpoint"] = cp
	}

	writeJSON(w, http.StatusOK, resp)
}
