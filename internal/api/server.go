// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/vault-sentinel/internal/service"
)

// Service interfaces for dependency injection and testing

// CollectServiceInterface defines the ingestion trigger operation
type CollectServiceInterface interface {
	Collect(ctx context.Context) (*service.CollectResult, error)
}

// QueryServiceInterface defines the read operations
type QueryServiceInterface interface {
	Latest(ctx context.Context) (*service.LatestResult, error)
	Range(ctx context.Context, rangeStr, resolutionStr string) (*service.RangeResult, error)
}

// Server represents the HTTP API server.
type Server struct {
	router         *mux.Router
	httpServer     *http.Server
	collectService CollectServiceInterface
	queryService   QueryServiceInterface
	config         *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// CollectSecret gates POST /collect; empty leaves the endpoint open.
	CollectSecret string

	RequestsPerSecond int
	Burst             int
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, collectService CollectServiceInterface, queryService QueryServiceInterface) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		collectService: collectService,
		queryService:   queryService,
		config:         config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSecond, s.config.Burst)

	// Middleware order matters: request IDs first so every log line has one.
	s.router.Use(RequestIDMiddleware)
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/latest", s.handleLatest).Methods("GET")
	s.router.HandleFunc("/snapshots", s.handleSnapshots).Methods("GET")
	s.router.Handle("/collect", BearerAuthMiddleware(s.config.CollectSecret)(http.HandlerFunc(s.handleCollect))).Methods("POST")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "vault-sentinel",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the handler tree. Used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}
