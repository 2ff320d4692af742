package exchange

import (
	"context"
	"sync/atomic"
	"time"

	"arbix/internal/types"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ExchangeName represents supported price source identifiers
type ExchangeName string

const (
	OKX      ExchangeName = "okx"
	Uniswap  ExchangeName = "uniswap"
	Binance  ExchangeName = "binance"
	Coinbase ExchangeName = "coinbase"
)

// DisplayName returns the human readable venue name used in recommendations
func (n ExchangeName) DisplayName() string {
	switch n {
	case OKX:
		return "OKX"
	case Uniswap:
		return "Uniswap"
	case Binance:
		return "Binance"
	case Coinbase:
		return "Coinbase"
	default:
		return string(n)
	}
}

var (
	// ErrPriceNotFound means the venue answered but has no price for the asset
	ErrPriceNotFound = errors.New("price not found")
	// ErrSymbolRequired means a symbol-keyed venue was asked without a symbol
	ErrSymbolRequired = errors.New("symbol required")
)

// PriceSource defines the interface that all price adapters must implement
type PriceSource interface {
	// GetName returns the source name (e.g., "okx", "binance")
	GetName() ExchangeName

	// GetPrice fetches the current USD price for the token
	GetPrice(ctx context.Context, token types.Token) (*Quote, error)

	// Health returns request health information
	Health() HealthStatus
}

// Quote represents a canonical price observation (normalized across sources)
type Quote struct {
	Source    ExchangeName    `json:"source"`
	Symbol    string          `json:"symbol,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency,omitempty"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// HealthStatus represents request health information
type HealthStatus struct {
	Connected    bool       `json:"connected"`
	LastPing     time.Time  `json:"lastPing"`
	MessageCount int64      `json:"messageCount"`
	ErrorCount   int64      `json:"errorCount"`
	LastError    string     `json:"lastError,omitempty"`
	FailedAt     *time.Time `json:"failedAt,omitempty"`
}

// HealthTracker keeps a HealthStatus in an atomic.Value for lock-free reads
type HealthTracker struct {
	health atomic.Value // stores HealthStatus
}

// NewHealthTracker returns a tracker initialised to a disconnected status
func NewHealthTracker() *HealthTracker {
	h := &HealthTracker{}
	h.health.Store(HealthStatus{})
	return h
}

// Status returns the current health snapshot
func (h *HealthTracker) Status() HealthStatus {
	if status, ok := h.health.Load().(HealthStatus); ok {
		return status
	}
	return HealthStatus{}
}

// RecordSuccess increments the message count and refreshes the last ping
func (h *HealthTracker) RecordSuccess() {
	status := h.Status()
	status.Connected = true
	status.MessageCount++
	status.LastPing = time.Now()
	h.health.Store(status)
}

// RecordError increments the error count and marks the source disconnected
func (h *HealthTracker) RecordError(err error) {
	status := h.Status()
	status.Connected = false
	status.ErrorCount++
	now := time.Now()
	status.FailedAt = &now
	if err != nil {
		status.LastError = err.Error()
	}
	h.health.Store(status)
}
