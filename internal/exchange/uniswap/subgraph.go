package uniswap

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
	defaultGatewayURL = "https://gateway.thegraph.com"
	defaultTimeout    = 10 * time.Second

	tokenPriceQuery = `query TokenPrice($id: ID!) {
  token(id: $id) {
    symbol
    derivedETH
  }
  bundle(id: "1") {
    ethPriceUSD
  }
}`

	// pricePrecision matches the six decimals the subgraph price is reported with
	pricePrecision = 6
)

var (
	// ErrUnsupportedChain is returned for chains without a configured subgraph
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrTokenNotFound is returned when the subgraph has no entity for the token
	ErrTokenNotFound = errors.Wrap(exchange.ErrPriceNotFound, "token not found on uniswap")
)

// TokenInfo is the symbol and derived USD price of a token
type TokenInfo struct {
	Symbol      string          `json:"symbol"`
	DerivedETH  decimal.Decimal `json:"derivedETH"`
	EthPriceUSD decimal.Decimal `json:"ethPriceUSD"`
	PriceUSD    decimal.Decimal `json:"priceUSD"`
}

// Subgraph implements the PriceSource interface for Uniswap v3 via The Graph
type Subgraph struct {
	gatewayURL string
	apiKey     string
	subgraphs  map[string]string
	client     *http.Client
	health     *exchange.HealthTracker
}

// NewSubgraph creates a new Uniswap subgraph source
func NewSubgraph(config Config, client *http.Client) *Subgraph {
	gatewayURL := config.GatewayURL
	if gatewayURL == "" {
		gatewayURL = defaultGatewayURL
	}
	subgraphs := config.Subgraphs
	if len(subgraphs) == 0 {
		subgraphs = DefaultSubgraphs
	}
	if client == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Subgraph{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		apiKey:     config.APIKey,
		subgraphs:  subgraphs,
		client:     client,
		health:     exchange.NewHealthTracker(),
	}
}

// GetName returns the exchange name
func (s *Subgraph) GetName() exchange.ExchangeName {
	return exchange.Uniswap
}

// Health returns request health information
func (s *Subgraph) Health() exchange.HealthStatus {
	return s.health.Status()
}

// SubgraphURL returns the gateway URL for the chain's subgraph
func (s *Subgraph) SubgraphURL(chainID string) (string, error) {
	id, ok := s.subgraphs[chainID]
	if !ok {
		return "", errors.Wrapf(ErrUnsupportedChain, "chainId %s", chainID)
	}
	return s.gatewayURL + "/api/" + s.apiKey + "/subgraphs/id/" + id, nil
}

// GetPrice fetches the token's USD price (derivedETH * ethPriceUSD)
func (s *Subgraph) GetPrice(ctx context.Context, token types.Token) (*exchange.Quote, error) {
	info, err := s.TokenInfo(ctx, token)
	if err != nil {
		return nil, err
	}
	return s.quote(info), nil
}

func (s *Subgraph) quote(info *TokenInfo) *exchange.Quote {
	return &exchange.Quote{
		Source:    s.GetName(),
		Symbol:    info.Symbol,
		Price:     info.PriceUSD,
		Currency:  "USD",
		FetchedAt: time.Now(),
	}
}

// TokenInfo queries the subgraph for the token's symbol and USD price
func (s *Subgraph) TokenInfo(ctx context.Context, token types.Token) (*TokenInfo, error) {
	if err := token.Validate(); err != nil {
		return nil, err
	}
	url, err := s.SubgraphURL(token.ChainIndex)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(GraphQLRequest{
		Query:     tokenPriceQuery,
		Variables: map[string]interface{}{"id": strings.ToLower(token.Address)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode graphql request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.health.RecordError(err)
		return nil, errors.Wrap(err, "uniswap subgraph")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := errors.Errorf("uniswap subgraph: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		s.health.RecordError(err)
		return nil, err
	}

	var gqlResp GraphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		s.health.RecordError(err)
		return nil, errors.Wrap(err, "decode subgraph response")
	}

	if len(gqlResp.Errors) > 0 {
		err := errors.Errorf("uniswap subgraph error: %s", gqlResp.Errors[0].Message)
		s.health.RecordError(err)
		return nil, err
	}

	s.health.RecordSuccess()

	if gqlResp.Data == nil || gqlResp.Data.Token == nil {
		return nil, errors.Wrapf(ErrTokenNotFound, "%s", token.Key())
	}
	if gqlResp.Data.Bundle == nil {
		return nil, errors.New("uniswap subgraph: missing eth price bundle")
	}

	derived, err := decimal.NewFromString(gqlResp.Data.Token.DerivedETH)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid derivedETH %q", gqlResp.Data.Token.DerivedETH)
	}
	ethUSD, err := decimal.NewFromString(gqlResp.Data.Bundle.EthPriceUSD)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid ethPriceUSD %q", gqlResp.Data.Bundle.EthPriceUSD)
	}

	info := &TokenInfo{
		Symbol:      gqlResp.Data.Token.Symbol,
		DerivedETH:  derived,
		EthPriceUSD: ethUSD,
		PriceUSD:    derived.Mul(ethUSD).Round(pricePrecision),
	}

	log.Debug().
		Str("source", string(s.GetName())).
		Str("token", token.Key()).
		Str("symbol", info.Symbol).
		Str("price", info.PriceUSD.String()).
		Msg("uniswap token price retrieved")

	return info, nil
}

// ResolveSymbol returns the token's on-chain symbol together with the
// Uniswap quote from the same subgraph response
func (s *Subgraph) ResolveSymbol(ctx context.Context, token types.Token) (string, *exchange.Quote, error) {
	info, err := s.TokenInfo(ctx, token)
	if err != nil {
		return "", nil, err
	}
	return info.Symbol, s.quote(info), nil
}
