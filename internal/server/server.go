package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mengo6988/foresight-graph/internal/domain"
	"github.com/mengo6988/foresight-graph/internal/server/handler"
	"github.com/mengo6988/foresight-graph/internal/server/middleware"
	"github.com/mengo6988/foresight-graph/internal/server/ws"
)

// Per-client request budget enforced when a rate limiter is configured.
const (
	rateLimitRequests = 120
	rateLimitWindow   = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Archives may be nil when cold storage is not configured.
type Handlers struct {
	Health       *handler.HealthHandler
	Status       *handler.StatusHandler
	Markets      *handler.MarketHandler
	Positions    *handler.PositionHandler
	Transactions *handler.TransactionHandler
	Transfers    *handler.TransferHandler
	Audit        *handler.AuditHandler
	Archives     *handler.ArchiveHandler
}

// Server is the read-side HTTP + WebSocket API over the ingested ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, rate limiting) and attaches
// the WebSocket hub. limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health and status (no auth required for health).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Market endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/conditions/{id}/market", handlers.Markets.GetMarketByCondition)

	// Position endpoints.
	mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
	mux.HandleFunc("GET /api/positions/{user}/{market}/{outcome}", handlers.Positions.GetPosition)

	// Ledger endpoints.
	mux.HandleFunc("GET /api/transactions", handlers.Transactions.ListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", handlers.Transactions.GetTransaction)
	mux.HandleFunc("GET /api/transfers", handlers.Transfers.ListTransfers)

	// Audit log.
	mux.HandleFunc("GET /api/audit", handlers.Audit.ListAudit)

	// Cold-storage archives, registered only when a blob store is wired.
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)
		mux.HandleFunc("GET /api/archives/{path...}", handlers.Archives.GetArchive)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil {
		h = middleware.RateLimit(limiter, rateLimitRequests, rateLimitWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
