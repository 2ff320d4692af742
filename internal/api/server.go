// Package api serves arbitrage snapshots, price state and signal history over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/exchange"
	"arbix/internal/history"
	"arbix/internal/pricebook"
	"arbix/internal/types"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// Collector gathers a fresh cross-venue snapshot for a token
type Collector interface {
	Collect(ctx context.Context, token types.Token) (*aggregation.Snapshot, error)
}

// SignalReader reads recorded recommendations, newest first
type SignalReader interface {
	Recent(limit int) ([]history.Signal, error)
}

// Deps are the components the handlers read from
type Deps struct {
	Collector Collector
	// Book receives on-demand snapshots of watchlist tokens only
	Book      *pricebook.Book
	Watchlist []types.Token
	Sources   []exchange.PriceSource
	// Signals may be nil when history is disabled
	Signals SignalReader
	// Metrics and WebSocket are mounted at /metrics and /ws when set
	Metrics   http.Handler
	WebSocket http.Handler
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           ":8080",
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 20 * time.Second,
	}
}

// Server represents the HTTP server
type Server struct {
	router *mux.Router
	server *http.Server
	deps   Deps
	config ServerConfig

	watched map[string]types.Token
}

// NewServer creates a new HTTP server instance
func NewServer(config ServerConfig, deps Deps) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		deps:    deps,
		config:  config,
		watched: make(map[string]types.Token, len(deps.Watchlist)),
	}
	for _, t := range deps.Watchlist {
		s.watched[t.Key()] = t
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         config.Addr,
		Handler:      s.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)
	s.router.Use(s.timeoutMiddleware)
	s.router.Use(s.corsMiddleware)

	if s.deps.Metrics != nil {
		s.router.Handle("/metrics", s.deps.Metrics).Methods(http.MethodGet)
	}
	if s.deps.WebSocket != nil {
		s.router.Handle("/ws", s.deps.WebSocket).Methods(http.MethodGet)
	}

	s.router.Handle("/health", s.jsonContentTypeMiddleware(http.HandlerFunc(s.handleHealth))).
		Methods(http.MethodGet, http.MethodOptions)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.jsonContentTypeMiddleware)

	api.HandleFunc("/arbitrage/{chainIndex}/{address}", s.handleArbitrage).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/prices/{chainIndex}/{address}", s.handlePrices).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/watchlist", s.handleWatchlist).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/signals", s.handleSignals).Methods(http.MethodGet, http.MethodOptions)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

// Handler returns the root handler (used by tests)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	log.Info().Str("component", "api").Str("addr", s.config.Addr).Msg("starting HTTP server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Str("component", "api").Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
