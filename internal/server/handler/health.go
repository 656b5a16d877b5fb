package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger checks that one backing dependency is reachable.
type Pinger func(ctx context.Context) error

// HealthHandler serves the health-check endpoint, probing the backing
// dependencies registered with it.
type HealthHandler struct {
	deps   map[string]Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler with the provided logger.
func NewHealthHandler(logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		deps:   make(map[string]Pinger),
		logger: logger,
	}
}

// AddDependency registers a named dependency probe. Must be called before
// the server starts.
func (h *HealthHandler) AddDependency(name string, ping Pinger) {
	h.deps[name] = ping
}

// HealthCheck responds with the overall status and a per-dependency
// breakdown. Returns 503 when any dependency probe fails.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	httpStatus := http.StatusOK
	deps := make(map[string]string, len(h.deps))

	for name, ping := range h.deps {
		if err := ping(ctx); err != nil {
			h.logger.WarnContext(r.Context(), "health probe failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			deps[name] = err.Error()
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
