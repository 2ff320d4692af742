package factory

import (
	"net/http"
	"strings"

	"arbix/internal/exchange"
	"arbix/internal/exchange/binance"
	"arbix/internal/exchange/coinbase"
	"arbix/internal/exchange/okx"
	"arbix/internal/exchange/uniswap"

	"github.com/go-faster/errors"
)

// SourceDeps holds everything needed to construct any price source
type SourceDeps struct {
	// HTTPClient is shared by all sources; nil lets each source build its own
	HTTPClient *http.Client

	OKX      okx.Config
	Uniswap  uniswap.Config
	Binance  binance.Config
	Coinbase coinbase.Config
}

// NewSource creates a new price source instance by name
func NewSource(name exchange.ExchangeName, deps SourceDeps) (exchange.PriceSource, error) {
	switch name {
	case exchange.OKX:
		return okx.NewDexMarket(deps.OKX, deps.HTTPClient), nil

	case exchange.Uniswap:
		return uniswap.NewSubgraph(deps.Uniswap, deps.HTTPClient), nil

	case exchange.Binance:
		return binance.NewSpotTicker(deps.Binance, deps.HTTPClient), nil

	case exchange.Coinbase:
		return coinbase.NewSpotPrices(deps.Coinbase, deps.HTTPClient), nil

	default:
		return nil, errors.Errorf("unknown exchange: %s", name)
	}
}

// NewSources creates the named sources in order, rejecting unknown or duplicate names
func NewSources(names []string, deps SourceDeps) ([]exchange.PriceSource, error) {
	seen := make(map[exchange.ExchangeName]bool, len(names))
	sources := make([]exchange.PriceSource, 0, len(names))

	for _, raw := range names {
		name := exchange.ExchangeName(strings.ToLower(strings.TrimSpace(raw)))
		if seen[name] {
			return nil, errors.Errorf("duplicate exchange: %s", name)
		}
		seen[name] = true

		src, err := NewSource(name, deps)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	return sources, nil
}

// ValidateExchangeName checks if the exchange name is supported
func ValidateExchangeName(name string) bool {
	switch exchange.ExchangeName(name) {
	case exchange.OKX, exchange.Uniswap, exchange.Binance, exchange.Coinbase:
		return true
	default:
		return false
	}
}

// GetSupportedExchanges returns a list of all supported exchanges
func GetSupportedExchanges() []exchange.ExchangeName {
	return []exchange.ExchangeName{exchange.OKX, exchange.Uniswap, exchange.Binance, exchange.Coinbase}
}
