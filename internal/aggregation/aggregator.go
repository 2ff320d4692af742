package aggregation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"arbix/internal/cache"
	"arbix/internal/exchange"
	"arbix/internal/metrics"
	"arbix/internal/types"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// SymbolResolver looks up the ticker symbol of an on-chain token. When the
// lookup also priced the token, the quote is returned and reused for the
// source named in Quote.Source.
type SymbolResolver interface {
	ResolveSymbol(ctx context.Context, token types.Token) (string, *exchange.Quote, error)
}

// Unavailable records a source that produced no price for a refresh
type Unavailable struct {
	Source exchange.ExchangeName `json:"source"`
	Reason string                `json:"reason"`
}

// Snapshot is the result of one price collection across all sources
type Snapshot struct {
	Token          types.Token      `json:"token"`
	Symbol         string           `json:"symbol,omitempty"`
	Quotes         []exchange.Quote `json:"quotes"`
	Unavailable    []Unavailable    `json:"unavailable,omitempty"`
	Recommendation *Recommendation  `json:"recommendation"`
	Timestamp      time.Time        `json:"timestamp"`
}

// Options tunes the aggregator
type Options struct {
	Threshold     decimal.Decimal
	SourceTimeout time.Duration
	CacheTTL      time.Duration
}

// DefaultOptions returns the default aggregator settings
func DefaultOptions() Options {
	return Options{
		Threshold:     DefaultThreshold,
		SourceTimeout: 8 * time.Second,
		CacheTTL:      5 * time.Second,
	}
}

// Aggregator fans a token out to every price source and combines the results
type Aggregator struct {
	sources  []exchange.PriceSource
	resolver SymbolResolver
	cache    cache.Cache
	metrics  *metrics.Registry
	opts     Options

	symbols sync.Map // token key -> resolved symbol
}

// New creates a new Aggregator. resolver, c and m may be nil.
func New(sources []exchange.PriceSource, resolver SymbolResolver, c cache.Cache, m *metrics.Registry, opts Options) *Aggregator {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = DefaultOptions().SourceTimeout
	}
	return &Aggregator{
		sources:  sources,
		resolver: resolver,
		cache:    c,
		metrics:  m,
		opts:     opts,
	}
}

// Sources returns the configured price sources
func (a *Aggregator) Sources() []exchange.PriceSource {
	out := make([]exchange.PriceSource, len(a.sources))
	copy(out, a.sources)
	return out
}

// Collect fetches the token price from every source concurrently. Source
// failures are reported in Snapshot.Unavailable and never fail the call.
func (a *Aggregator) Collect(ctx context.Context, token types.Token) (*Snapshot, error) {
	if err := token.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	var seed *exchange.Quote
	token.Symbol, seed = a.resolveSymbol(ctx, token)

	type result struct {
		quote *exchange.Quote
		err   error
	}
	results := make([]result, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		if seed != nil && src.GetName() == seed.Source {
			a.store(ctx, quoteKey(src, token), seed)
			results[i] = result{quote: seed}
			continue
		}
		wg.Add(1)
		go func(i int, src exchange.PriceSource) {
			defer wg.Done()
			quote, err := a.fetch(ctx, src, token)
			results[i] = result{quote: quote, err: err}
		}(i, src)
	}
	wg.Wait()

	snap := &Snapshot{
		Token:     token,
		Symbol:    token.Symbol,
		Quotes:    make([]exchange.Quote, 0, len(a.sources)),
		Timestamp: time.Now(),
	}

	for i, r := range results {
		name := a.sources[i].GetName()
		if r.err != nil {
			snap.Unavailable = append(snap.Unavailable, Unavailable{Source: name, Reason: unavailableReason(r.err)})
			if a.metrics != nil {
				a.metrics.SourceFailures.WithLabelValues(string(name)).Inc()
			}
			log.Debug().
				Err(r.err).
				Str("source", string(name)).
				Str("token", token.Key()).
				Msg("price unavailable")
			continue
		}
		snap.Quotes = append(snap.Quotes, *r.quote)
	}

	if rec, ok := Recommend(snap.Quotes, a.opts.Threshold); ok {
		snap.Recommendation = rec
		if a.metrics != nil {
			a.metrics.Recommendations.WithLabelValues(string(rec.BuyFrom), string(rec.SellTo)).Inc()
		}
	}

	if a.metrics != nil {
		a.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	}

	return snap, nil
}

func (a *Aggregator) fetch(ctx context.Context, src exchange.PriceSource, token types.Token) (*exchange.Quote, error) {
	name := string(src.GetName())
	key := quoteKey(src, token)

	if a.cache != nil && a.opts.CacheTTL > 0 {
		if quote, ok := a.cached(ctx, key); ok {
			if a.metrics != nil {
				a.metrics.CacheHits.WithLabelValues(name).Inc()
			}
			return quote, nil
		}
		if a.metrics != nil {
			a.metrics.CacheMisses.WithLabelValues(name).Inc()
		}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.opts.SourceTimeout)
	defer cancel()

	quote, err := src.GetPrice(fetchCtx, token)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, exchange.ErrPriceNotFound
	}

	a.store(ctx, key, quote)
	return quote, nil
}

func quoteKey(src exchange.PriceSource, token types.Token) string {
	return "quote:" + string(src.GetName()) + ":" + token.Key()
}

func (a *Aggregator) store(ctx context.Context, key string, quote *exchange.Quote) {
	if a.cache == nil || a.opts.CacheTTL <= 0 {
		return
	}
	b, err := json.Marshal(quote)
	if err != nil {
		return
	}
	if err := a.cache.Set(ctx, key, b, a.opts.CacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("quote cache set failed")
	}
}

func (a *Aggregator) cached(ctx context.Context, key string) (*exchange.Quote, bool) {
	b, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("quote cache get failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var quote exchange.Quote
	if err := json.Unmarshal(b, &quote); err != nil {
		return nil, false
	}
	return &quote, true
}

// resolveSymbol returns the symbol used for the CEX lookups and, on a fresh
// lookup, the quote the resolver fetched along the way.
func (a *Aggregator) resolveSymbol(ctx context.Context, token types.Token) (string, *exchange.Quote) {
	if token.Symbol != "" {
		return token.Symbol, nil
	}
	if v, ok := a.symbols.Load(token.Key()); ok {
		return v.(string), nil
	}
	if a.resolver == nil {
		return "", nil
	}

	resolveCtx, cancel := context.WithTimeout(ctx, a.opts.SourceTimeout)
	defer cancel()

	symbol, quote, err := a.resolver.ResolveSymbol(resolveCtx, token)
	if err != nil {
		log.Warn().Err(err).Str("token", token.Key()).Msg("symbol lookup failed")
		return "", nil
	}
	if symbol != "" {
		a.symbols.Store(token.Key(), symbol)
	}
	if quote != nil && !quote.Price.IsPositive() {
		quote = nil
	}
	return symbol, quote
}

func unavailableReason(err error) string {
	switch {
	case errors.Is(err, exchange.ErrPriceNotFound):
		return "not listed"
	case errors.Is(err, exchange.ErrSymbolRequired):
		return "symbol unknown"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return err.Error()
	}
}
