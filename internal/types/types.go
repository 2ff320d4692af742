package types

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidToken is returned when a token lacks a chain index or contract address
var ErrInvalidToken = errors.New("invalid token: chainIndex and tokenContractAddress are required")

// Token identifies an on-chain asset by chain and contract address
type Token struct {
	ChainIndex string `json:"chainIndex" yaml:"chain_index"`
	Address    string `json:"tokenContractAddress" yaml:"address"`
	Symbol     string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
}

// Key returns the canonical token key (chainIndex:lowercase address)
func (t Token) Key() string {
	return t.ChainIndex + ":" + strings.ToLower(t.Address)
}

// Validate checks that both identifying fields are present
func (t Token) Validate() error {
	if strings.TrimSpace(t.ChainIndex) == "" || strings.TrimSpace(t.Address) == "" {
		return ErrInvalidToken
	}
	return nil
}

// ParseTokenKey is the inverse of Token.Key
func ParseTokenKey(key string) (Token, error) {
	chain, addr, ok := strings.Cut(key, ":")
	if !ok {
		return Token{}, errors.Wrapf(ErrInvalidToken, "malformed key %q", key)
	}
	t := Token{ChainIndex: chain, Address: addr}
	if err := t.Validate(); err != nil {
		return Token{}, err
	}
	return t, nil
}

// Stats holds statistical information about a token's price book
type Stats struct {
	UpdatesProcessed int64
	FirstUpdateTime  time.Time
	LastUpdateTime   time.Time
	Sources          int
	Unavailable      int

	BestBuy        decimal.Decimal // lowest quoted price
	BestBuySource  string
	BestSell       decimal.Decimal // highest quoted price
	BestSellSource string
	Spread         decimal.Decimal // BestSell - BestBuy
	SpreadPct      decimal.Decimal // Spread / BestBuy * 100

	SignalsEmitted int64
}
