package coinbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"arbix/internal/exchange"
	"arbix/internal/symbols"
	"arbix/internal/types"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const defaultBaseURL = "https://api.coinbase.com"

// SpotPrices implements the PriceSource interface for Coinbase spot prices
type SpotPrices struct {
	baseURL string
	client  *http.Client
	health  *exchange.HealthTracker
}

// NewSpotPrices creates a new Coinbase spot price source
func NewSpotPrices(config Config, client *http.Client) *SpotPrices {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &SpotPrices{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		health:  exchange.NewHealthTracker(),
	}
}

// GetName returns the exchange name
func (e *SpotPrices) GetName() exchange.ExchangeName {
	return exchange.Coinbase
}

// Health returns request health information
func (e *SpotPrices) Health() exchange.HealthStatus {
	return e.health.Status()
}

// GetPrice fetches the <SYMBOL>-USD spot price
func (e *SpotPrices) GetPrice(ctx context.Context, token types.Token) (*exchange.Quote, error) {
	if token.Symbol == "" {
		return nil, exchange.ErrSymbolRequired
	}
	pair := symbols.CoinbasePair(token.Symbol)
	url := fmt.Sprintf("%s/v2/prices/%s/spot", e.baseURL, pair)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.health.RecordError(err)
		return nil, errors.Wrapf(err, "coinbase spot %s", pair)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		e.health.RecordSuccess()
		return nil, errors.Wrapf(exchange.ErrPriceNotFound, "coinbase %s", pair)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := errors.Errorf("coinbase spot %s: HTTP %d: %s", pair, resp.StatusCode, strings.TrimSpace(string(msg)))
		e.health.RecordError(err)
		return nil, err
	}

	var spot SpotPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&spot); err != nil {
		e.health.RecordError(err)
		return nil, errors.Wrap(err, "decode spot price")
	}
	e.health.RecordSuccess()

	if spot.Data == nil || spot.Data.Amount == "" {
		return nil, errors.Wrapf(exchange.ErrPriceNotFound, "coinbase %s", pair)
	}

	price, err := decimal.NewFromString(spot.Data.Amount)
	if err != nil {
		return nil, errors.Wrapf(err, "coinbase invalid amount %q", spot.Data.Amount)
	}

	log.Debug().
		Str("source", string(e.GetName())).
		Str("pair", pair).
		Str("price", price.String()).
		Msg("coinbase price retrieved")

	return &exchange.Quote{
		Source:    e.GetName(),
		Symbol:    pair,
		Price:     price,
		Currency:  spot.Data.Currency,
		FetchedAt: time.Now(),
	}, nil
}
