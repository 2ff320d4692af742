// Package monitor periodically refreshes the watchlist and emits arbitrage signals.
package monitor

import (
	"context"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/history"
	"arbix/internal/notify"
	"arbix/internal/pricebook"
	"arbix/internal/types"

	"github.com/rs/zerolog/log"
)

// DefaultInterval is the refresh period of the watchlist
const DefaultInterval = 15 * time.Second

// Collector gathers a cross-venue snapshot for a token
type Collector interface {
	Collect(ctx context.Context, token types.Token) (*aggregation.Snapshot, error)
}

// SignalStore persists emitted recommendations
type SignalStore interface {
	Record(sig history.Signal) error
}

// Monitor drives the refresh loop
type Monitor struct {
	collector Collector
	book      *pricebook.Book
	tokens    []types.Token
	store     SignalStore
	notifier  notify.Notifier
	interval  time.Duration
}

// New creates a monitor. store may be nil; a nil notifier is replaced by notify.Nop.
func New(collector Collector, book *pricebook.Book, tokens []types.Token, store SignalStore, notifier notify.Notifier, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	for _, t := range tokens {
		book.GetOrCreate(t)
	}
	return &Monitor{
		collector: collector,
		book:      book,
		tokens:    tokens,
		store:     store,
		notifier:  notifier,
		interval:  interval,
	}
}

// Tokens returns the watchlist
func (m *Monitor) Tokens() []types.Token {
	out := make([]types.Token, len(m.tokens))
	copy(out, m.tokens)
	return out
}

// Run refreshes immediately and then on every tick until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) error {
	log.Info().
		Str("component", "monitor").
		Int("tokens", len(m.tokens)).
		Dur("interval", m.interval).
		Msg("monitor started")

	m.RefreshAll(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("component", "monitor").Msg("monitor stopped")
			return nil
		case <-ticker.C:
			m.RefreshAll(ctx)
		}
	}
}

// RefreshAll refreshes every watchlist token in order and returns the number of new signals
func (m *Monitor) RefreshAll(ctx context.Context) int {
	signals := 0
	for _, token := range m.tokens {
		if ctx.Err() != nil {
			break
		}
		_, isNew, err := m.Refresh(ctx, token)
		if err != nil {
			log.Warn().Err(err).Str("component", "monitor").Str("token", token.Key()).Msg("refresh failed")
			continue
		}
		if isNew {
			signals++
		}
	}

	m.logCombinedStats()
	return signals
}

// Refresh collects one token, applies it to the price book and, when the
// recommendation is new, records and notifies it.
func (m *Monitor) Refresh(ctx context.Context, token types.Token) (*aggregation.Snapshot, bool, error) {
	snap, err := m.collector.Collect(ctx, token)
	if err != nil {
		return nil, false, err
	}

	isNew := m.book.GetOrCreate(token).Apply(snap)
	if !isNew {
		return snap, false, nil
	}

	rec := snap.Recommendation
	log.Info().
		Str("component", "monitor").
		Str("token", token.Key()).
		Str("symbol", snap.Symbol).
		Str("buy", string(rec.BuyFrom)).
		Str("buy_price", rec.BuyPrice.String()).
		Str("sell", string(rec.SellTo)).
		Str("sell_price", rec.SellPrice.String()).
		Str("profit", rec.Profit.StringFixed(6)).
		Msg("arbitrage opportunity")

	if m.store != nil {
		err := m.store.Record(history.Signal{
			Token:          snap.Token,
			Symbol:         snap.Symbol,
			Recommendation: *rec,
			Timestamp:      snap.Timestamp,
		})
		if err != nil {
			log.Error().Err(err).Str("component", "monitor").Msg("failed to record signal")
		}
	}

	if err := m.notifier.Notify(ctx, snap); err != nil {
		log.Error().Err(err).Str("component", "monitor").Msg("failed to send notification")
	}

	return snap, true, nil
}

func (m *Monitor) logCombinedStats() {
	now := time.Now()
	for _, key := range m.book.Keys() {
		pb, ok := m.book.Get(key)
		if !ok || !pb.IsInitialized() {
			continue
		}
		stats := pb.GetStats()
		log.Debug().
			Str("component", "monitor").
			Str("token", key).
			Str("symbol", pb.Token().Symbol).
			Int("sources", stats.Sources).
			Int("unavailable", stats.Unavailable).
			Str("best_buy", stats.BestBuySource+"@"+stats.BestBuy.String()).
			Str("best_sell", stats.BestSellSource+"@"+stats.BestSell.String()).
			Str("spread", stats.Spread.StringFixed(6)).
			Str("spread_pct", stats.SpreadPct.StringFixed(2)).
			Int64("signals", stats.SignalsEmitted).
			Dur("age", pb.Since(now)).
			Msg("price book")
	}
}
