package pricebook

import (
	"testing"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/exchange"
	"arbix/internal/types"

	"github.com/shopspring/decimal"
)

var uni = types.Token{ChainIndex: "1", Address: "0x1F9840a85d5aF5bf1D1762F925BDADdC4201F984"}

func quote(source exchange.ExchangeName, price string) exchange.Quote {
	return exchange.Quote{Source: source, Price: decimal.RequireFromString(price)}
}

func snapshot(ts time.Time, quotes ...exchange.Quote) *aggregation.Snapshot {
	snap := &aggregation.Snapshot{Token: uni, Symbol: "UNI", Quotes: quotes, Timestamp: ts}
	snap.Recommendation, _ = aggregation.Recommend(quotes, aggregation.DefaultThreshold)
	return snap
}

func TestNew(t *testing.T) {
	pb := New(uni)

	if pb.IsInitialized() {
		t.Error("New price book should not be initialized")
	}
	if pb.Snapshot() != nil {
		t.Error("New price book should have no snapshot")
	}
	if len(pb.GetQuotes()) != 0 {
		t.Error("New price book should have no quotes")
	}
}

func TestApply(t *testing.T) {
	pb := New(uni)
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	isNew := pb.Apply(snapshot(t0,
		quote(exchange.OKX, "7.10"),
		quote(exchange.Uniswap, "7.00"),
		quote(exchange.Binance, "7.25"),
	))

	if !isNew {
		t.Error("First recommendation should be reported as new")
	}
	if !pb.IsInitialized() {
		t.Fatal("Price book should be initialized after Apply")
	}

	stats := pb.GetStats()
	if stats.UpdatesProcessed != 1 {
		t.Errorf("Expected 1 update, got %d", stats.UpdatesProcessed)
	}
	if stats.Sources != 3 {
		t.Errorf("Expected 3 sources, got %d", stats.Sources)
	}
	if stats.BestBuySource != "uniswap" || !stats.BestBuy.Equal(decimal.RequireFromString("7")) {
		t.Errorf("Unexpected best buy %s@%s", stats.BestBuySource, stats.BestBuy)
	}
	if stats.BestSellSource != "binance" || !stats.BestSell.Equal(decimal.RequireFromString("7.25")) {
		t.Errorf("Unexpected best sell %s@%s", stats.BestSellSource, stats.BestSell)
	}
	if !stats.Spread.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("Expected spread 0.25, got %s", stats.Spread)
	}
	if stats.SpreadPct.StringFixed(4) != "3.5714" {
		t.Errorf("Unexpected spread pct %s", stats.SpreadPct)
	}
	if pb.Token().Symbol != "UNI" {
		t.Errorf("Expected symbol to be learned from snapshot, got %q", pb.Token().Symbol)
	}
}

func TestApply_ReplacesQuotes(t *testing.T) {
	pb := New(uni)
	t0 := time.Now()

	pb.Apply(snapshot(t0, quote(exchange.OKX, "1"), quote(exchange.Coinbase, "2")))
	pb.Apply(snapshot(t0.Add(time.Second), quote(exchange.OKX, "1.5")))

	quotes := pb.GetQuotes()
	if len(quotes) != 1 {
		t.Fatalf("Expected 1 quote after replace, got %d", len(quotes))
	}
	if _, ok := quotes[exchange.Coinbase]; ok {
		t.Error("Stale coinbase quote should have been dropped")
	}

	stats := pb.GetStats()
	if !stats.Spread.IsZero() {
		t.Errorf("Spread should be zero with one source, got %s", stats.Spread)
	}
	if !stats.FirstUpdateTime.Equal(t0) {
		t.Errorf("First update time changed to %v", stats.FirstUpdateTime)
	}
	if stats.UpdatesProcessed != 2 {
		t.Errorf("Expected 2 updates, got %d", stats.UpdatesProcessed)
	}
}

func TestApply_SignalDedupe(t *testing.T) {
	pb := New(uni)
	t0 := time.Now()

	steps := []struct {
		quotes   []exchange.Quote
		expected bool
	}{
		{[]exchange.Quote{quote(exchange.OKX, "1"), quote(exchange.Binance, "2")}, true},
		// Same venues, different prices
		{[]exchange.Quote{quote(exchange.OKX, "1.1"), quote(exchange.Binance, "2.5")}, false},
		// Venues flip
		{[]exchange.Quote{quote(exchange.OKX, "3"), quote(exchange.Binance, "2")}, true},
		// Gap closes
		{[]exchange.Quote{quote(exchange.OKX, "2"), quote(exchange.Binance, "2")}, false},
		// Reopens with the earlier venues
		{[]exchange.Quote{quote(exchange.OKX, "3"), quote(exchange.Binance, "2")}, true},
	}

	for i, step := range steps {
		got := pb.Apply(snapshot(t0.Add(time.Duration(i)*time.Second), step.quotes...))
		if got != step.expected {
			t.Errorf("Step %d: expected new=%v, got %v", i, step.expected, got)
		}
	}

	if pb.GetStats().SignalsEmitted != 3 {
		t.Errorf("Expected 3 signals, got %d", pb.GetStats().SignalsEmitted)
	}
}

func TestUpdate_KeepsSignalBaseline(t *testing.T) {
	pb := New(uni)
	t0 := time.Now()

	pb.Update(snapshot(t0, quote(exchange.OKX, "1"), quote(exchange.Binance, "2")))

	if !pb.IsInitialized() {
		t.Fatal("Update should initialize the book")
	}
	if pb.GetStats().BestBuySource != "okx" {
		t.Errorf("Expected best buy okx, got %s", pb.GetStats().BestBuySource)
	}
	if pb.GetStats().SignalsEmitted != 0 {
		t.Errorf("Update must not emit signals, got %d", pb.GetStats().SignalsEmitted)
	}

	// The refresh loop still sees the opportunity as new
	if !pb.Apply(snapshot(t0.Add(time.Second), quote(exchange.OKX, "1"), quote(exchange.Binance, "2"))) {
		t.Error("Expected Apply after Update to report a new signal")
	}

	// An update with flipped venues does not move the baseline either
	pb.Update(snapshot(t0.Add(2*time.Second), quote(exchange.OKX, "3"), quote(exchange.Binance, "2")))
	if pb.Apply(snapshot(t0.Add(3*time.Second), quote(exchange.OKX, "1"), quote(exchange.Binance, "2"))) {
		t.Error("Expected unchanged venues to stay deduplicated across an Update")
	}
	if pb.GetStats().UpdatesProcessed != 4 {
		t.Errorf("Expected 4 updates, got %d", pb.GetStats().UpdatesProcessed)
	}
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	pb := New(uni)
	pb.Apply(snapshot(time.Now(), quote(exchange.OKX, "1"), quote(exchange.Binance, "2")))

	snap := pb.Snapshot()
	snap.Quotes[0].Price = decimal.NewFromInt(99)
	snap.Recommendation.BuyFrom = exchange.Coinbase

	again := pb.Snapshot()
	if !again.Quotes[0].Price.Equal(decimal.NewFromInt(1)) {
		t.Error("Snapshot quotes are shared with the price book")
	}
	if again.Recommendation.BuyFrom != exchange.OKX {
		t.Error("Snapshot recommendation is shared with the price book")
	}
}

func TestBook(t *testing.T) {
	b := NewBook()
	weth := types.Token{ChainIndex: "1", Address: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"}

	pb := b.GetOrCreate(uni)
	if b.GetOrCreate(types.Token{ChainIndex: "1", Address: "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984"}) != pb {
		t.Error("Token keys should be case-insensitive on address")
	}
	b.GetOrCreate(weth)

	keys := b.Keys()
	if len(keys) != 2 || keys[0] != uni.Key() || keys[1] != weth.Key() {
		t.Errorf("Unexpected keys %v", keys)
	}

	if _, ok := b.Get("137:0xdead"); ok {
		t.Error("Unknown key should not be found")
	}

	if len(b.Snapshots()) != 0 {
		t.Error("Uninitialized books should not produce snapshots")
	}
	pb.Apply(snapshot(time.Now(), quote(exchange.OKX, "1")))
	if len(b.Snapshots()) != 1 {
		t.Error("Expected one snapshot")
	}
}

func TestSince(t *testing.T) {
	pb := New(uni)
	now := time.Now()
	if pb.Since(now) != 0 {
		t.Error("Expected zero age before first update")
	}
	pb.Apply(snapshot(now.Add(-3*time.Second), quote(exchange.OKX, "1")))
	if got := pb.Since(now); got != 3*time.Second {
		t.Errorf("Expected 3s, got %v", got)
	}
}
