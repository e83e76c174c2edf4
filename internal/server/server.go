// Package server exposes the detection-and-masking pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/doc-sentinel/internal/config"
	"github.com/raaihank/doc-sentinel/internal/logger"
	"github.com/raaihank/doc-sentinel/internal/pipeline"
	"github.com/raaihank/doc-sentinel/internal/websocket"
)

// Server represents the main API server
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	pipeline *pipeline.Pipeline
	store    pipeline.FindingStore
	router   *mux.Router
	server   *http.Server
	wsHub    *websocket.Hub
}

// New creates a new API server instance
func New(cfg *config.Config, pipe *pipeline.Pipeline, store pipeline.FindingStore, hub *websocket.Hub, log *logger.Logger) *Server {
	router := mux.NewRouter()

	server := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		pipeline: pipe,
		store:    store,
		router:   router,
		wsHub:    hub,
	}

	server.setupRoutes()

	server.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Info endpoint
	s.router.HandleFunc("/info", s.handleInfo).Methods("GET")

	// WebSocket endpoint for run events
	if s.wsHub != nil {
		s.router.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket).Methods("GET")
	}

	// Pipeline endpoints
	api := s.router.PathPrefix("/v1").Subrouter()
	api.Use(s.loggingMiddleware)
	api.HandleFunc("/mask", s.handleMask).Methods("POST")
	api.HandleFunc("/values/{ref:.*}", s.handleValues).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting doc-sentinel API server",
		zap.Int("port", s.config.Server.Port),
		zap.String("output_dir", s.config.Masking.OutputDir),
	)

	if s.wsHub != nil {
		go s.wsHub.Run()
	}

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping doc-sentinel API server")
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":"%s"}`, time.Now().Format(time.RFC3339))
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	clients := 0
	if s.wsHub != nil {
		clients = s.wsHub.ClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
		"name":"doc-sentinel",
		"version":"0.1.0",
		"output_dir":%q,
		"cache_enabled":%t,
		"connected_clients":%d
	}`, s.config.Masking.OutputDir, s.config.Cache.Enabled, clients)
}

// handleWebSocket handles WebSocket connections for run events
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.wsHub.HandleWebSocket(w, r)
}
