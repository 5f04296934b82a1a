// Package server exposes the storefront over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/nftstore/internal/domain"
	"github.com/alanyoungcy/nftstore/internal/server/handler"
	"github.com/alanyoungcy/nftstore/internal/server/middleware"
	"github.com/alanyoungcy/nftstore/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey enables authentication when set.
	APIKey string
	// RateLimit is requests per minute per client IP. It is only enforced
	// when a Limiter is supplied.
	RateLimit int
	Limiter   domain.RateLimiter
}

// Handlers aggregates the HTTP handlers.
type Handlers struct {
	Health   *handler.HealthHandler
	Config   *handler.ConfigHandler
	Session  *handler.SessionHandler
	Balance  *handler.BalanceHandler
	Listings *handler.ListingHandler
	Images   *handler.ImageHandler
	Activity *handler.ActivityHandler
}

// Server is the storefront HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and wraps the mux in the middleware chain:
// CORS, logging, rate limit, auth.
func NewServer(cfg Config, h Handlers, hub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/config", h.Config.GetConfig)

	mux.HandleFunc("POST /api/session", h.Session.Connect)
	mux.HandleFunc("GET /api/session", h.Session.GetSession)
	mux.HandleFunc("DELETE /api/session", h.Session.Disconnect)

	mux.HandleFunc("GET /api/balance/{address}", h.Balance.GetBalance)

	mux.HandleFunc("GET /api/listings", h.Listings.ListListings)
	mux.HandleFunc("GET /api/listings/mine", h.Listings.MyListings)
	mux.HandleFunc("POST /api/listings", h.Listings.CreateListing)
	mux.HandleFunc("POST /api/listings/{id}/buy", h.Listings.BuyListing)

	mux.HandleFunc("GET /api/activity", h.Activity.ListActivity)
	mux.HandleFunc("POST /api/images", h.Images.Upload)

	if hub != nil {
		mux.HandleFunc("GET /ws", hub.HandleWS)
	}

	var root http.Handler = mux
	root = middleware.Auth(cfg.APIKey, "/api/health", "/api/config")(root)
	if cfg.Limiter != nil && cfg.RateLimit > 0 {
		root = middleware.RateLimit(cfg.Limiter, cfg.RateLimit, time.Minute, logger)(root)
	}
	root = middleware.Logging(logger)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           root,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// Create and buy block until confirmation.
			WriteTimeout: 5 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With(slog.String("component", "server")),
	}
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
