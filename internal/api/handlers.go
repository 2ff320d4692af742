package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/exchange"
	"arbix/internal/history"
	"arbix/internal/types"

	"github.com/go-faster/errors"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	defaultSignalLimit = 50
	maxSignalLimit     = 500
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports service and per-source health
type HealthResponse struct {
	Status    string                                         `json:"status"`
	Timestamp time.Time                                      `json:"timestamp"`
	Tokens    int                                            `json:"tokens"`
	Sources   map[exchange.ExchangeName]exchange.HealthStatus `json:"sources"`
}

// WatchlistEntry is the latest state of one watchlist token
type WatchlistEntry struct {
	Token       types.Token           `json:"token"`
	Initialized bool                  `json:"initialized"`
	AgeSeconds  float64               `json:"ageSeconds,omitempty"`
	Stats       *types.Stats          `json:"stats,omitempty"`
	Snapshot    *aggregation.Snapshot `json:"snapshot,omitempty"`
}

// SignalsResponse lists recorded recommendations
type SignalsResponse struct {
	Signals []history.Signal `json:"signals"`
	Count   int              `json:"count"`
}

// writeJSON writes JSON response with proper error handling
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"json_encoding_failed"}`, http.StatusInternalServerError)
	}
}

// writeError writes standardized error response
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: RequestID(r.Context()),
		Timestamp: time.Now().UTC(),
	})
}

func tokenFromVars(r *http.Request) (types.Token, error) {
	vars := mux.Vars(r)
	token := types.Token{
		ChainIndex: vars["chainIndex"],
		Address:    vars["address"],
		Symbol:     r.URL.Query().Get("symbol"),
	}
	if _, err := strconv.ParseUint(token.ChainIndex, 10, 64); err != nil {
		return types.Token{}, errors.Wrapf(types.ErrInvalidToken, "chainIndex %q is not numeric", token.ChainIndex)
	}
	if err := token.Validate(); err != nil {
		return types.Token{}, err
	}
	return token, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Tokens:    len(s.deps.Watchlist),
		Sources:   make(map[exchange.ExchangeName]exchange.HealthStatus, len(s.deps.Sources)),
	}
	for _, src := range s.deps.Sources {
		h := src.Health()
		resp.Sources[src.GetName()] = h
		if !h.Connected && h.ErrorCount > 0 {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleArbitrage collects a fresh snapshot. Watchlist tokens requested
// without a symbol override also refresh their price book; signals are only
// recorded and notified by the refresh loop.
func (s *Server) handleArbitrage(w http.ResponseWriter, r *http.Request) {
	token, err := tokenFromVars(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_token", err.Error())
		return
	}

	watched, onWatchlist := s.watched[token.Key()]
	updateBook := onWatchlist && token.Symbol == ""
	if updateBook {
		token = watched
	}

	snap, err := s.deps.Collector.Collect(r.Context(), token)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("token", token.Key()).Msg("arbitrage collect failed")
		if errors.Is(err, types.ErrInvalidToken) {
			writeError(w, r, http.StatusBadRequest, "invalid_token", err.Error())
			return
		}
		writeError(w, r, http.StatusBadGateway, "upstream_error", err.Error())
		return
	}

	if updateBook && s.deps.Book != nil {
		s.deps.Book.GetOrCreate(token).Update(snap)
	}

	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	token, err := tokenFromVars(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_token", err.Error())
		return
	}

	pb, ok := s.deps.Book.Get(token.Key())
	if !ok || !pb.IsInitialized() {
		writeError(w, r, http.StatusNotFound, "token_not_tracked", "no price data for "+token.Key())
		return
	}

	writeJSON(w, http.StatusOK, pb.Snapshot())
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	entries := make([]WatchlistEntry, 0, len(s.deps.Watchlist))

	for _, token := range s.deps.Watchlist {
		entry := WatchlistEntry{Token: token}
		if pb, ok := s.deps.Book.Get(token.Key()); ok && pb.IsInitialized() {
			stats := pb.GetStats()
			entry.Token = pb.Token()
			entry.Initialized = true
			entry.AgeSeconds = pb.Since(now).Seconds()
			entry.Stats = &stats
			entry.Snapshot = pb.Snapshot()
		}
		entries = append(entries, entry)
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	limit := defaultSignalLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxSignalLimit {
		limit = maxSignalLimit
	}

	if s.deps.Signals == nil {
		writeJSON(w, http.StatusOK, SignalsResponse{Signals: []history.Signal{}})
		return
	}

	signals, err := s.deps.Signals.Recent(limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("read signal history failed")
		writeError(w, r, http.StatusInternalServerError, "history_error", "failed to read signal history")
		return
	}

	writeJSON(w, http.StatusOK, SignalsResponse{Signals: signals, Count: len(signals)})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, r, http.StatusNotFound, "endpoint_not_found", "The requested endpoint does not exist")
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed")
}
