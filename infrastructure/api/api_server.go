package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/helixml/marketbasket"
	apimiddleware "github.com/helixml/marketbasket/infrastructure/api/middleware"
	v1 "github.com/helixml/marketbasket/infrastructure/api/v1"
)

// requestTimeout bounds every /api/v1 request.
const requestTimeout = 60 * time.Second

// APIServer provides an HTTP API backed by a marketbasket Client.
type APIServer struct {
	client      *marketbasket.Client
	mu          sync.Mutex
	server      *Server
	corsOrigins []string
	logger      *slog.Logger
}

// NewAPIServer creates a new APIServer wired to client. Mutating endpoints
// require one of the client's API keys; reads, health and docs stay open.
func NewAPIServer(client *marketbasket.Client) *APIServer {
	return &APIServer{
		client: client,
		logger: client.Logger(),
	}
}

// WithCORSAllowedOrigins enables CORS for origins.
func (a *APIServer) WithCORSAllowedOrigins(origins []string) *APIServer {
	a.corsOrigins = origins
	return a
}

// mountRoutes wires up health, docs and all v1 API routes on router.
func (a *APIServer) mountRoutes(router chi.Router) {
	c := a.client

	router.Get("/healthz", a.live)
	router.Get("/health", a.ready)
	router.Mount("/docs", NewDocsRouter("/docs/openapi.json").Routes())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout))
		r.Use(apimiddleware.WriteProtect(apimiddleware.NewAuthConfigWithKeys(c.APIKeys())))

		r.Mount("/events", v1.NewEventsRouter(c).Routes())
		r.Mount("/summaries", v1.NewSummariesRouter(c).Routes())
	})
}

// live reports that the process is serving requests.
func (a *APIServer) live(w http.ResponseWriter, _ *http.Request) {
	apimiddleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ready reports whether the database is reachable, with inbox depth.
func (a *APIServer) ready(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 5*time.Second)
	defer cancel()

	if err := a.client.Ping(ctx); err != nil {
		a.logger.Warn("health check failed", slog.String("error", err.Error()))
		apimiddleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	body := map[string]any{
		"status": "healthy",
		"worker": a.client.WorkerRunning(),
	}
	if pending, err := a.client.Events.Count(ctx); err == nil {
		body["pending_events"] = pending
	}
	if dead, err := a.client.Events.CountDeadLettered(ctx); err == nil {
		body["dead_lettered_events"] = dead
	}
	apimiddleware.WriteJSON(w, http.StatusOK, body)
}

// ListenAndServe starts the HTTP server on addr and blocks until Shutdown.
func (a *APIServer) ListenAndServe(addr string) error {
	server := NewServer(addr, a.logger, WithCORS(a.corsOrigins))
	a.mountRoutes(server.Router())

	a.mu.Lock()
	a.server = &server
	a.mu.Unlock()

	return server.Start()
}

// Shutdown gracefully shuts down the server.
func (a *APIServer) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	server := a.server
	a.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Handler returns the fully wired router for use with custom servers and tests.
func (a *APIServer) Handler() http.Handler {
	server := NewServer("", a.logger, WithCORS(a.corsOrigins))
	a.mountRoutes(server.Router())
	return server.Router()
}
