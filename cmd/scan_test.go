package main

import (
	"bytes"
	"testing"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/exchange"
	"arbix/internal/types"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPrintSnapshot(t *testing.T) {
	color.NoColor = true

	quotes := []exchange.Quote{
		{Source: exchange.OKX, Price: decimal.RequireFromString("1.0010")},
		{Source: exchange.Binance, Price: decimal.RequireFromString("1.0200")},
	}
	rec, ok := aggregation.Recommend(quotes, aggregation.DefaultThreshold)
	assert.True(t, ok)

	snap := &aggregation.Snapshot{
		Token:          types.Token{ChainIndex: "1", Address: "0xdac17f958d2ee523a2206206994597c13d831ec7"},
		Symbol:         "USDT",
		Quotes:         quotes,
		Unavailable:    []aggregation.Unavailable{{Source: exchange.Coinbase, Reason: "not listed"}},
		Recommendation: rec,
		Timestamp:      time.Now(),
	}

	var buf bytes.Buffer
	printSnapshot(&buf, snap)
	out := buf.String()

	assert.Contains(t, out, "USDT")
	assert.Contains(t, out, "1:0xdac17f958d2ee523a2206206994597c13d831ec7")
	assert.Contains(t, out, "Coinbase")
	assert.Contains(t, out, "N/A not listed")
	assert.Contains(t, out, "BUY OKX @ 1.001000")
	assert.Contains(t, out, "SELL Binance @ 1.020000")
	assert.Contains(t, out, "Profit: 0.019000 (1.90%)")
}

func TestPrintSnapshot_NoRecommendation(t *testing.T) {
	color.NoColor = true

	snap := &aggregation.Snapshot{
		Token:  types.Token{ChainIndex: "1", Address: "0xabc"},
		Quotes: []exchange.Quote{{Source: exchange.OKX, Price: decimal.NewFromInt(2)}},
	}

	var buf bytes.Buffer
	printSnapshot(&buf, snap)

	assert.Contains(t, buf.String(), "0xabc")
	assert.Contains(t, buf.String(), "no arbitrage opportunity")
}
