package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mengo6988/foresight-graph/internal/domain"
)

// PositionStore defines the read operations the position handler requires.
type PositionStore interface {
	Get(ctx context.Context, user, marketID string, outcome int) (*domain.UserPosition, error)
	ListByUser(ctx context.Context, user string, opts domain.ListOpts) ([]*domain.UserPosition, error)
	ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]*domain.UserPosition, error)
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	positions PositionStore
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given store and logger.
func NewPositionHandler(positions PositionStore, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []*domain.UserPosition `json:"positions"`
}

// ListPositions returns positions for a user or a market. Exactly one of the
// two query parameters must be given.
// GET /api/positions?user=0x...  or  GET /api/positions?market=0x...
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	market := r.URL.Query().Get("market")
	if (user == "") == (market == "") {
		writeError(w, http.StatusBadRequest, "exactly one of user or market query parameter required")
		return
	}
	opts := parseListOpts(r)

	var (
		positions []*domain.UserPosition
		err       error
	)
	if user != "" {
		positions, err = h.positions.ListByUser(r.Context(), user, opts)
	} else {
		positions, err = h.positions.ListByMarket(r.Context(), market, opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("user", user),
			slog.String("market", market),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []*domain.UserPosition{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetPosition returns the single (user, market, outcome) position.
// GET /api/positions/{user}/{market}/{outcome}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")
	market := pathParam(r, "market")
	outcome, err := strconv.Atoi(pathParam(r, "outcome"))
	if user == "" || market == "" || err != nil || outcome < 0 {
		writeError(w, http.StatusBadRequest, "invalid position key")
		return
	}

	pos, err := h.positions.Get(r.Context(), user, market, outcome)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get position failed",
			slog.String("user", user),
			slog.String("market", market),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get position")
		return
	}

	writeJSON(w, http.StatusOK, pos)
}
