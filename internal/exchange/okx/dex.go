package okx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"arbix/internal/exchange"
	"arbix/internal/types"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://web3.okx.com"
	priceInfoPath  = "/api/v5/dex/market/price-info"
	defaultTimeout = 10 * time.Second
)

// DexMarket implements the PriceSource interface for the OKX DEX market API
type DexMarket struct {
	baseURL string
	client  *http.Client
	signer  *Signer
	health  *exchange.HealthTracker
}

// NewDexMarket creates a new OKX DEX market client
func NewDexMarket(config Config, client *http.Client) *DexMarket {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &DexMarket{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		signer:  NewSigner(config.APIKey, config.SecretKey, config.Passphrase),
		health:  exchange.NewHealthTracker(),
	}
}

// GetName returns the exchange name
func (e *DexMarket) GetName() exchange.ExchangeName {
	return exchange.OKX
}

// Health returns request health information
func (e *DexMarket) Health() exchange.HealthStatus {
	return e.health.Status()
}

// GetPrice fetches the token's USD price from price-info
func (e *DexMarket) GetPrice(ctx context.Context, token types.Token) (*exchange.Quote, error) {
	infos, err := e.PriceInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 || infos[0].Price == "" {
		return nil, errors.Wrapf(exchange.ErrPriceNotFound, "okx %s", token.Key())
	}

	price, err := decimal.NewFromString(infos[0].Price)
	if err != nil {
		return nil, errors.Wrapf(err, "okx invalid price %q", infos[0].Price)
	}

	return &exchange.Quote{
		Source:    e.GetName(),
		Symbol:    token.Symbol,
		Price:     price,
		Currency:  "USD",
		FetchedAt: time.Now(),
	}, nil
}

// PriceInfo fetches market summaries for one or more tokens in a single signed request
func (e *DexMarket) PriceInfo(ctx context.Context, tokens ...types.Token) ([]PriceInfo, error) {
	refs := make([]TokenRef, len(tokens))
	for i, t := range tokens {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		refs[i] = TokenRef{ChainIndex: t.ChainIndex, TokenContractAddress: t.Address}
	}

	body, err := json.Marshal(refs)
	if err != nil {
		return nil, errors.Wrap(err, "encode price-info body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+priceInfoPath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")
	e.signer.Apply(req, priceInfoPath, string(body))

	resp, err := e.client.Do(req)
	if err != nil {
		e.health.RecordError(err)
		return nil, errors.Wrap(err, "okx price-info")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := errors.Errorf("okx price-info: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		e.health.RecordError(err)
		return nil, err
	}

	var okxResp PriceInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&okxResp); err != nil {
		e.health.RecordError(err)
		return nil, errors.Wrap(err, "decode price-info")
	}

	if okxResp.Code != "0" {
		err := errors.Errorf("okx API error: code=%s, msg=%s", okxResp.Code, okxResp.Msg)
		e.health.RecordError(err)
		return nil, err
	}

	e.health.RecordSuccess()
	log.Debug().
		Str("source", string(e.GetName())).
		Int("tokens", len(tokens)).
		Int("results", len(okxResp.Data)).
		Msg("okx price-info retrieved")

	return okxResp.Data, nil
}
