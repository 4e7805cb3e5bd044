// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/productstore/internal/auth"
	"github.com/vyrodovalexey/productstore/internal/config"
	"github.com/vyrodovalexey/productstore/internal/handler"
	"github.com/vyrodovalexey/productstore/internal/middleware"
	"github.com/vyrodovalexey/productstore/internal/store"
)

// Dependencies are the collaborators the server routes to. Records is
// required; the rest may be nil, which disables the matching feature.
type Dependencies struct {
	Records       store.RecordStore
	Importer      handler.RecordImporter
	Catalog       store.CatalogStore
	Authenticator auth.Authenticator
	// Ready backs /ready. nil reports ready unconditionally.
	Ready func(ctx context.Context) error
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *zap.Logger
	feed       *handler.ChangeFeed
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Server {
	router := mux.NewRouter()

	s := &Server{
		router: router,
		config: cfg,
		logger: logger,
	}

	s.setupMiddleware(deps.Authenticator)
	s.setupRoutes(deps)
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware(authenticator auth.Authenticator) {
	// First applied = outermost
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.Metrics.Enabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.Auth(authenticator, s.logger)))
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(deps Dependencies) {
	handler.NewHealthHandler(deps.Ready, s.logger).RegisterRoutes(s.router)

	s.feed = handler.NewChangeFeed(s.logger)
	s.feed.RegisterRoutes(s.router)

	handler.NewRecordsHandler(deps.Records, deps.Importer, s.feed, s.logger).RegisterRoutes(s.router)

	if deps.Catalog != nil {
		handler.NewProductsHandler(deps.Catalog, s.feed, s.logger).RegisterRoutes(s.router)
	}

	if s.config.Metrics.Enabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.Metrics.Enabled),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// WebSocket connections are hijacked and not tracked by http.Server.
	if s.feed != nil {
		s.feed.CloseAllConnections()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Feed returns the change feed that record and product handlers publish to.
func (s *Server) Feed() *handler.ChangeFeed {
	return s.feed
}
