// Package watchlist loads the set of tokens the monitor refreshes.
package watchlist

import (
	"os"

	"arbix/internal/types"

	"github.com/go-faster/errors"
	"gopkg.in/yaml.v3"
)

// File is the on-disk watchlist layout
type File struct {
	Tokens []types.Token `yaml:"tokens"`
}

// Load reads a YAML watchlist; an empty path yields Default()
func Load(path string) ([]types.Token, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read watchlist %s", path)
	}
	tokens, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "watchlist %s", path)
	}
	return tokens, nil
}

// Parse decodes and validates a watchlist, dropping duplicate token keys
func Parse(data []byte) ([]types.Token, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}
	if len(f.Tokens) == 0 {
		return nil, errors.New("no tokens")
	}

	seen := make(map[string]bool, len(f.Tokens))
	tokens := make([]types.Token, 0, len(f.Tokens))
	for i, t := range f.Tokens {
		if err := t.Validate(); err != nil {
			return nil, errors.Wrapf(err, "token %d", i)
		}
		if seen[t.Key()] {
			continue
		}
		seen[t.Key()] = true
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// Default returns the built-in watchlist
func Default() []types.Token {
	return []types.Token{
		{ChainIndex: "501", Address: "So11111111111111111111111111111111111111112", Symbol: "SOL"},
		{ChainIndex: "66", Address: "0x382bb369d343125bfb2117af9c149795c6c65c50", Symbol: "HT"},
		{ChainIndex: "1", Address: "0xC02aaA39b223FE8D0A0E5C4F27eAD9083C756Cc2", Symbol: "WETH"},
		{ChainIndex: "1", Address: "0x6B175474E89094C44Da98b954EedeAC495271d0F", Symbol: "DAI"},
		{ChainIndex: "1", Address: "0xA0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Symbol: "USDC"},
		{ChainIndex: "1", Address: "0xdAC17F958D2ee523a2206206994597C13D831ec7", Symbol: "USDT"},
		{ChainIndex: "137", Address: "0x7d1afa7b718fb893db30a3abc0cfc608aacfebb0", Symbol: "MATIC"},
		{ChainIndex: "1", Address: "0x514910771af9ca656af840dff83e8264ecf986ca", Symbol: "LINK"},
		{ChainIndex: "1", Address: "0x0d8775f648430679a709e98d2b0cb6250d2887ef", Symbol: "BAT"},
		{ChainIndex: "1", Address: "0x111111111117dc0aa78b770fa6a738034120c302", Symbol: "1INCH"},
		{ChainIndex: "1", Address: "0xc00e94cb662c3520282e6f5717214004a7f26888", Symbol: "COMP"},
		{ChainIndex: "1", Address: "0x6f259637dcd74c767781e37bc6133cd6a68aa161", Symbol: "HT"},
		{ChainIndex: "1", Address: "0x408e41876cccdc0f92210600ef50372656052a38", Symbol: "REN"},
		{ChainIndex: "1", Address: "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984", Symbol: "UNI"},
		{ChainIndex: "1", Address: "0x0bc529c00C6401aEF6D220BE8C6Ea1667F6Ad93e", Symbol: "YFI"},
		{ChainIndex: "1", Address: "0x853d955acef822db058eb8505911ed77f175b99e", Symbol: "FRAX"},
		{ChainIndex: "1", Address: "0x4fabb145d64652a948d72533023f6e7a623c7c53", Symbol: "BUSD"},
		{ChainIndex: "56", Address: "0xe9e7cea3dedca5984780bafc599bd69add087d56", Symbol: "BUSD"},
		{ChainIndex: "1", Address: "0x2ba592f78db6436527729929aaf6c908497cb200", Symbol: "CREAM"},
		{ChainIndex: "1", Address: "0x7Fc66500c84A76Ad7e9c93437bFc5Ac33E2DDaE9", Symbol: "AAVE"},
	}
}
