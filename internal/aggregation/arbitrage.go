package aggregation

import (
	"encoding/json"
	"sort"

	"arbix/internal/exchange"

	"github.com/shopspring/decimal"
)

// DefaultThreshold is the minimum absolute price gap (in USD) worth reporting
var DefaultThreshold = decimal.RequireFromString("0.01")

var hundred = decimal.NewFromInt(100)

// Recommendation describes a buy-low / sell-high opportunity across two venues
type Recommendation struct {
	BuyFrom   exchange.ExchangeName `json:"buyFrom"`
	BuyPrice  decimal.Decimal       `json:"buyPrice"`
	SellTo    exchange.ExchangeName `json:"sellTo"`
	SellPrice decimal.Decimal       `json:"sellPrice"`
	Profit    decimal.Decimal       `json:"profit"`
	ProfitPct decimal.Decimal       `json:"profitPct"`
}

// MarshalJSON reports profit with six decimals and the percentage with two
func (r Recommendation) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		BuyFrom   exchange.ExchangeName `json:"buyFrom"`
		BuyPrice  string                `json:"buyPrice"`
		SellTo    exchange.ExchangeName `json:"sellTo"`
		SellPrice string                `json:"sellPrice"`
		Profit    string                `json:"profit"`
		ProfitPct string                `json:"profitPct"`
	}{
		BuyFrom:   r.BuyFrom,
		BuyPrice:  r.BuyPrice.String(),
		SellTo:    r.SellTo,
		SellPrice: r.SellPrice.String(),
		Profit:    r.Profit.StringFixed(6),
		ProfitPct: r.ProfitPct.StringFixed(2),
	})
}

// SameVenues reports whether both recommendations route between the same venues
func (r *Recommendation) SameVenues(other *Recommendation) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.BuyFrom == other.BuyFrom && r.SellTo == other.SellTo
}

// Recommend picks the cheapest and most expensive venues and returns a
// recommendation when their gap is strictly greater than threshold.
// Quotes with a non-positive price are ignored. The input is not modified.
func Recommend(quotes []exchange.Quote, threshold decimal.Decimal) (*Recommendation, bool) {
	if threshold.IsNegative() {
		threshold = decimal.Zero
	}

	valid := make([]exchange.Quote, 0, len(quotes))
	for _, q := range DedupeQuotes(quotes) {
		if q.Price.IsPositive() {
			valid = append(valid, q)
		}
	}
	if len(valid) < 2 {
		return nil, false
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Price.LessThan(valid[j].Price)
	})

	low := valid[0]
	high := valid[len(valid)-1]
	profit := high.Price.Sub(low.Price)
	if !profit.GreaterThan(threshold) {
		return nil, false
	}

	return &Recommendation{
		BuyFrom:   low.Source,
		BuyPrice:  low.Price,
		SellTo:    high.Source,
		SellPrice: high.Price,
		Profit:    profit,
		ProfitPct: profit.Div(low.Price).Mul(hundred),
	}, true
}

// DedupeQuotes keeps one quote per source. A later quote replaces an earlier
// one but keeps its position.
func DedupeQuotes(quotes []exchange.Quote) []exchange.Quote {
	out := make([]exchange.Quote, 0, len(quotes))
	index := make(map[exchange.ExchangeName]int, len(quotes))

	for _, q := range quotes {
		if i, ok := index[q.Source]; ok {
			out[i] = q
			continue
		}
		index[q.Source] = len(out)
		out = append(out, q)
	}

	return out
}
