package binance

import (
	"context"
	"net/http"
	"strings"
	"time"

	"arbix/internal/exchange"
	"arbix/internal/symbols"
	"arbix/internal/types"

	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SpotTicker implements the PriceSource interface for Binance spot prices
type SpotTicker struct {
	client *gobinance.Client
	health *exchange.HealthTracker
}

// NewSpotTicker creates a new Binance spot ticker source
func NewSpotTicker(config Config, httpClient *http.Client) *SpotTicker {
	client := gobinance.NewClient(config.APIKey, config.SecretKey)
	if config.BaseURL != "" {
		client.BaseURL = strings.TrimRight(config.BaseURL, "/")
	}
	if httpClient != nil {
		client.HTTPClient = httpClient
	}

	return &SpotTicker{
		client: client,
		health: exchange.NewHealthTracker(),
	}
}

// GetName returns the exchange name
func (e *SpotTicker) GetName() exchange.ExchangeName {
	return exchange.Binance
}

// Health returns request health information
func (e *SpotTicker) Health() exchange.HealthStatus {
	return e.health.Status()
}

// GetPrice fetches the <SYMBOL>USDT ticker price
func (e *SpotTicker) GetPrice(ctx context.Context, token types.Token) (*exchange.Quote, error) {
	if token.Symbol == "" {
		return nil, exchange.ErrSymbolRequired
	}
	pair := symbols.BinancePair(token.Symbol)

	prices, err := e.client.NewListPricesService().Symbol(pair).Do(ctx)
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == invalidSymbolCode {
			e.health.RecordSuccess()
			return nil, errors.Wrapf(exchange.ErrPriceNotFound, "binance %s", pair)
		}
		e.health.RecordError(err)
		return nil, errors.Wrapf(err, "binance ticker %s", pair)
	}
	e.health.RecordSuccess()

	for _, p := range prices {
		if p == nil || p.Symbol != pair {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "binance invalid price %q", p.Price)
		}

		log.Debug().
			Str("source", string(e.GetName())).
			Str("pair", pair).
			Str("price", price.String()).
			Msg("binance price retrieved")

		return &exchange.Quote{
			Source:    e.GetName(),
			Symbol:    pair,
			Price:     price,
			Currency:  "USDT",
			FetchedAt: time.Now(),
		}, nil
	}

	return nil, errors.Wrapf(exchange.ErrPriceNotFound, "binance %s", pair)
}
