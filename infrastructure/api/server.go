// Package api provides the HTTP server, routing and API documentation.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	apimiddleware "github.com/helixml/marketbasket/infrastructure/api/middleware"
)

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	corsOrigins []string
}

// WithCORS allows cross-origin requests from origins. "*" allows any origin.
func WithCORS(origins []string) ServerOption {
	return func(c *serverConfig) {
		c.corsOrigins = origins
	}
}

// Server represents the HTTP API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	addr       string
}

// NewServer creates a new API Server with the standard middleware stack.
func NewServer(addr string, logger *slog.Logger, opts ...ServerOption) Server {
	if logger == nil {
		logger = slog.Default()
	}

	var cfg serverConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(apimiddleware.Correlation)
	router.Use(apimiddleware.Logging(logger))
	router.Use(chimiddleware.Recoverer)

	if len(cfg.corsOrigins) > 0 {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", apimiddleware.APIKeyHeader, apimiddleware.CorrelationHeader},
			ExposedHeaders: []string{apimiddleware.CorrelationHeader},
			MaxAge:         300,
		}))
	}

	return Server{
		router: router,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      90 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		addr:   addr,
		logger: logger,
	}
}

// Router returns the chi router for registering routes.
func (s Server) Router() chi.Router {
	return s.router
}

// Start serves HTTP until Shutdown is called. The write timeout exceeds
// the API request timeout so handlers can still report a timeout.
func (s Server) Start() error {
	s.logger.Info("starting HTTP server", slog.String("addr", s.addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the server address.
func (s Server) Addr() string {
	return s.addr
}
