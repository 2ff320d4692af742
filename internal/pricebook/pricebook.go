package pricebook

import (
	"sort"
	"sync"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/exchange"
	"arbix/internal/types"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PriceBook holds the latest cross-venue price state for one token
type PriceBook struct {
	mu          sync.RWMutex
	token       types.Token
	quotes      map[exchange.ExchangeName]exchange.Quote
	latest      *aggregation.Snapshot
	lastRec     *aggregation.Recommendation // baseline for signal novelty, moved only by Apply
	initialized bool
	stats       types.Stats
}

// New creates a new PriceBook instance
func New(token types.Token) *PriceBook {
	return &PriceBook{
		token:  token,
		quotes: make(map[exchange.ExchangeName]exchange.Quote),
	}
}

// Token returns the token this book tracks
func (pb *PriceBook) Token() types.Token {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.token
}

// Apply replaces the per-source quotes with the snapshot's and refreshes
// statistics. It reports whether the snapshot carries a recommendation whose
// venues differ from the one seen by the previous Apply.
func (pb *PriceBook) Apply(snap *aggregation.Snapshot) bool {
	if snap == nil {
		return false
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()

	previous := pb.lastRec
	pb.update(snap)
	pb.lastRec = pb.latest.Recommendation

	isNew := snap.Recommendation != nil && !snap.Recommendation.SameVenues(previous)
	if isNew {
		pb.stats.SignalsEmitted++
	}
	return isNew
}

// Update refreshes quotes and statistics like Apply but leaves signal
// novelty untouched, so the next Apply still reports a changed venue pair.
func (pb *PriceBook) Update(snap *aggregation.Snapshot) {
	if snap == nil {
		return
	}

	pb.mu.Lock()
	defer pb.mu.Unlock()
	pb.update(snap)
}

// update must be called with mutex locked
func (pb *PriceBook) update(snap *aggregation.Snapshot) {
	pb.quotes = make(map[exchange.ExchangeName]exchange.Quote, len(snap.Quotes))
	for _, q := range snap.Quotes {
		pb.quotes[q.Source] = q
	}
	if snap.Symbol != "" {
		pb.token.Symbol = snap.Symbol
	}
	pb.latest = copySnapshot(snap)

	if pb.stats.FirstUpdateTime.IsZero() {
		pb.stats.FirstUpdateTime = snap.Timestamp
	}
	pb.stats.UpdatesProcessed++
	pb.stats.LastUpdateTime = snap.Timestamp
	pb.stats.Unavailable = len(snap.Unavailable)
	pb.updateStats()
	pb.initialized = true
}

// Snapshot returns a copy of the last applied snapshot, or nil
func (pb *PriceBook) Snapshot() *aggregation.Snapshot {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return copySnapshot(pb.latest)
}

// GetQuotes returns a copy of the current quotes by source
func (pb *PriceBook) GetQuotes() map[exchange.ExchangeName]exchange.Quote {
	pb.mu.RLock()
	defer pb.mu.RUnlock()

	quotes := make(map[exchange.ExchangeName]exchange.Quote, len(pb.quotes))
	for k, v := range pb.quotes {
		quotes[k] = v
	}
	return quotes
}

// GetStats returns a copy of the current statistics
func (pb *PriceBook) GetStats() types.Stats {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.stats
}

// IsInitialized returns whether a snapshot has been applied
func (pb *PriceBook) IsInitialized() bool {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	return pb.initialized
}

// updateStats recalculates best prices and spread (must be called with mutex locked)
func (pb *PriceBook) updateStats() {
	pb.stats.Sources = 0
	pb.stats.BestBuy = decimal.Zero
	pb.stats.BestBuySource = ""
	pb.stats.BestSell = decimal.Zero
	pb.stats.BestSellSource = ""
	pb.stats.Spread = decimal.Zero
	pb.stats.SpreadPct = decimal.Zero

	// Walk in snapshot order so ties resolve the same way as the recommendation
	for _, q := range pb.latest.Quotes {
		if !q.Price.IsPositive() {
			continue
		}
		pb.stats.Sources++
		if pb.stats.BestBuySource == "" || q.Price.LessThan(pb.stats.BestBuy) {
			pb.stats.BestBuy = q.Price
			pb.stats.BestBuySource = string(q.Source)
		}
		if pb.stats.BestSellSource == "" || q.Price.GreaterThanOrEqual(pb.stats.BestSell) {
			pb.stats.BestSell = q.Price
			pb.stats.BestSellSource = string(q.Source)
		}
	}

	if pb.stats.Sources >= 2 {
		pb.stats.Spread = pb.stats.BestSell.Sub(pb.stats.BestBuy)
		pb.stats.SpreadPct = pb.stats.Spread.Div(pb.stats.BestBuy).Mul(hundred)
	}
}

func copySnapshot(snap *aggregation.Snapshot) *aggregation.Snapshot {
	if snap == nil {
		return nil
	}
	out := *snap
	out.Quotes = append([]exchange.Quote(nil), snap.Quotes...)
	out.Unavailable = append([]aggregation.Unavailable(nil), snap.Unavailable...)
	if snap.Recommendation != nil {
		rec := *snap.Recommendation
		out.Recommendation = &rec
	}
	return &out
}

// Book is a registry of price books keyed by token key
type Book struct {
	mu    sync.RWMutex
	books map[string]*PriceBook
}

// NewBook creates an empty registry
func NewBook() *Book {
	return &Book{books: make(map[string]*PriceBook)}
}

// Get returns the book for a token key
func (b *Book) Get(key string) (*PriceBook, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	pb, ok := b.books[key]
	return pb, ok
}

// GetOrCreate returns the token's book, creating it on first use
func (b *Book) GetOrCreate(token types.Token) *PriceBook {
	key := token.Key()

	b.mu.Lock()
	defer b.mu.Unlock()
	if pb, ok := b.books[key]; ok {
		return pb
	}
	pb := New(token)
	b.books[key] = pb
	return pb
}

// Keys returns all token keys in sorted order
func (b *Book) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	keys := make([]string, 0, len(b.books))
	for k := range b.books {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshots returns the latest snapshot of every initialized book, ordered by key
func (b *Book) Snapshots() []*aggregation.Snapshot {
	keys := b.Keys()
	out := make([]*aggregation.Snapshot, 0, len(keys))
	for _, k := range keys {
		pb, ok := b.Get(k)
		if !ok {
			continue
		}
		if snap := pb.Snapshot(); snap != nil {
			out = append(out, snap)
		}
	}
	return out
}

// Since returns how long ago the book was last updated
func (pb *PriceBook) Since(now time.Time) time.Duration {
	pb.mu.RLock()
	defer pb.mu.RUnlock()
	if pb.stats.LastUpdateTime.IsZero() {
		return 0
	}
	return now.Sub(pb.stats.LastUpdateTime)
}
