package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/exchange"
	"arbix/internal/history"
	"arbix/internal/pricebook"
	"arbix/internal/types"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	link = types.Token{ChainIndex: "1", Address: "0x514910771af9ca656af840dff83e8264ecf986ca", Symbol: "LINK"}
	dai  = types.Token{ChainIndex: "1", Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Symbol: "DAI"}
)

func linkSnapshot(token types.Token) *aggregation.Snapshot {
	quotes := []exchange.Quote{
		{Source: exchange.Uniswap, Price: decimal.RequireFromString("14.10")},
		{Source: exchange.Binance, Price: decimal.RequireFromString("14.32")},
	}
	rec, _ := aggregation.Recommend(quotes, aggregation.DefaultThreshold)
	return &aggregation.Snapshot{
		Token:          token,
		Symbol:         "LINK",
		Quotes:         quotes,
		Unavailable:    []aggregation.Unavailable{{Source: exchange.Coinbase, Reason: "not listed"}},
		Recommendation: rec,
		Timestamp:      time.Now(),
	}
}

type fakeCollector struct {
	err   error
	token types.Token
}

func (f *fakeCollector) Collect(ctx context.Context, token types.Token) (*aggregation.Snapshot, error) {
	f.token = token
	if f.err != nil {
		return nil, f.err
	}
	snap := linkSnapshot(token)
	if token.Symbol != "" {
		snap.Symbol = token.Symbol
	}
	return snap, nil
}

type fakeSignals struct {
	signals []history.Signal
	limit   int
	err     error
}

func (f *fakeSignals) Recent(limit int) ([]history.Signal, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.signals) {
		return f.signals[:limit], nil
	}
	return f.signals, nil
}

type fakeSource struct {
	name   exchange.ExchangeName
	health exchange.HealthStatus
}

func (f fakeSource) GetName() exchange.ExchangeName { return f.name }
func (f fakeSource) Health() exchange.HealthStatus  { return f.health }
func (f fakeSource) GetPrice(context.Context, types.Token) (*exchange.Quote, error) {
	return nil, exchange.ErrPriceNotFound
}

type fixture struct {
	server    *Server
	book      *pricebook.Book
	collector *fakeCollector
	signals   *fakeSignals
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	book := pricebook.NewBook()
	book.GetOrCreate(link).Apply(linkSnapshot(link))
	book.GetOrCreate(dai)

	f := &fixture{
		book:      book,
		collector: &fakeCollector{},
		signals:   &fakeSignals{},
	}
	f.server = NewServer(DefaultServerConfig(), Deps{
		Collector: f.collector,
		Book:      book,
		Watchlist: []types.Token{link, dai},
		Sources: []exchange.PriceSource{
			fakeSource{name: exchange.OKX, health: exchange.HealthStatus{Connected: true, MessageCount: 3}},
			fakeSource{name: exchange.Binance},
		},
		Signals: f.signals,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("arbix_up 1\n"))
		}),
	})
	return f
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body HealthResponse
	decode(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, 2, body.Tokens)
	assert.True(t, body.Sources[exchange.OKX].Connected)
	assert.Contains(t, body.Sources, exchange.Binance)
}

func TestHealth_Degraded(t *testing.T) {
	f := newFixture(t)
	f.server.deps.Sources = append(f.server.deps.Sources, fakeSource{
		name:   exchange.Coinbase,
		health: exchange.HealthStatus{ErrorCount: 2, LastError: "HTTP 503"},
	})

	var body HealthResponse
	decode(t, f.get(t, "/health"), &body)
	assert.Equal(t, "degraded", body.Status)
}

func TestArbitrage(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/arbitrage/1/0x514910771AF9CA656af840dff83e8264ecf986ca?symbol=LINK")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "LINK", f.collector.token.Symbol)

	var body map[string]interface{}
	decode(t, rec, &body)
	rec2 := body["recommendation"].(map[string]interface{})
	assert.Equal(t, "uniswap", rec2["buyFrom"])
	assert.Equal(t, "binance", rec2["sellTo"])
	assert.Equal(t, "0.220000", rec2["profit"])
	assert.Len(t, body["unavailable"], 1)
}

func TestArbitrage_Errors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		err      error
		expected int
		code     string
	}{
		{"non numeric chain", "/api/arbitrage/eth/0xabc", nil, http.StatusBadRequest, "invalid_token"},
		{"upstream failure", "/api/arbitrage/1/0xabc", errors.New("boom"), http.StatusBadGateway, "upstream_error"},
		{"invalid from collector", "/api/arbitrage/1/0xabc", types.ErrInvalidToken, http.StatusBadRequest, "invalid_token"},
		{"missing address", "/api/arbitrage/1", nil, http.StatusNotFound, "endpoint_not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.collector.err = tt.err

			rec := f.get(t, tt.path)
			require.Equal(t, tt.expected, rec.Code, rec.Body.String())

			var body ErrorResponse
			decode(t, rec, &body)
			assert.Equal(t, tt.code, body.Error)
			assert.NotEmpty(t, body.Message)
			assert.False(t, body.Timestamp.IsZero())
		})
	}
}

func TestArbitrage_LeavesSharedStateAlone(t *testing.T) {
	f := newFixture(t)
	before := f.book.Keys()

	// Tokens outside the watchlist are answered but never tracked
	for _, addr := range []string{"0xaaa", "0xbbb", "0xccc"} {
		rec := f.get(t, "/api/arbitrage/1/"+addr)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	assert.Equal(t, before, f.book.Keys())

	// A symbol override on a watchlist token does not leak into its book
	rec := f.get(t, "/api/arbitrage/1/"+link.Address+"?symbol=BTC")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BTC", f.collector.token.Symbol)

	pb, ok := f.book.Get(link.Key())
	require.True(t, ok)
	assert.Equal(t, "LINK", pb.Token().Symbol)
	assert.Equal(t, int64(1), pb.GetStats().UpdatesProcessed)
}

func TestArbitrage_WatchlistTokenUpdatesBook(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/arbitrage/1/"+dai.Address)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// The configured watchlist token is collected, symbol included
	assert.Equal(t, "DAI", f.collector.token.Symbol)

	pb, ok := f.book.Get(dai.Key())
	require.True(t, ok)
	assert.True(t, pb.IsInitialized())
	stats := pb.GetStats()
	assert.Equal(t, int64(1), stats.UpdatesProcessed)
	assert.Zero(t, stats.SignalsEmitted)

	// The refresh loop still reports the opportunity as new
	assert.True(t, pb.Apply(linkSnapshot(dai)))
}

func TestPrices(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/prices/1/0x514910771af9ca656af840dff83e8264ecf986ca")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap map[string]interface{}
	decode(t, rec, &snap)
	assert.Equal(t, "LINK", snap["symbol"])

	// Tracked but never refreshed
	rec = f.get(t, "/api/prices/1/"+dai.Address)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Unknown token
	rec = f.get(t, "/api/prices/137/0xdead")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "token_not_tracked", body.Error)
}

func TestWatchlist(t *testing.T) {
	f := newFixture(t)
	rec := f.get(t, "/api/watchlist")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []WatchlistEntry
	decode(t, rec, &entries)
	require.Len(t, entries, 2)

	assert.True(t, entries[0].Initialized)
	require.NotNil(t, entries[0].Stats)
	assert.Equal(t, "uniswap", entries[0].Stats.BestBuySource)
	require.NotNil(t, entries[0].Snapshot)

	assert.False(t, entries[1].Initialized)
	assert.Nil(t, entries[1].Snapshot)
	assert.Equal(t, "DAI", entries[1].Token.Symbol)
}

func TestSignals(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.signals.signals = append(f.signals.signals, history.Signal{Token: link, Symbol: "LINK", Timestamp: time.Now()})
	}

	rec := f.get(t, "/api/signals")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultSignalLimit, f.signals.limit)
	var body SignalsResponse
	decode(t, rec, &body)
	assert.Equal(t, 3, body.Count)

	f.get(t, "/api/signals?limit=2")
	assert.Equal(t, 2, f.signals.limit)

	f.get(t, "/api/signals?limit=100000")
	assert.Equal(t, maxSignalLimit, f.signals.limit)

	for _, bad := range []string{"0", "-1", "ten"} {
		rec := f.get(t, "/api/signals?limit="+bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}

	f.signals.err = errors.New("disk on fire")
	rec = f.get(t, "/api/signals")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSignals_HistoryDisabled(t *testing.T) {
	f := newFixture(t)
	f.server = NewServer(DefaultServerConfig(), Deps{Book: f.book})

	rec := f.get(t, "/api/signals")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"signals":[],"count":0}`, rec.Body.String())
}

func TestMetricsAndPreflight(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "arbix_up 1")

	req := httptest.NewRequest(http.MethodOptions, "/api/watchlist", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	out := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(out, req)
	assert.Equal(t, http.StatusNoContent, out.Code)
	assert.Equal(t, "*", out.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDPropagation(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/signals?limit=zero", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
	var body ErrorResponse
	decode(t, rec, &body)
	assert.Equal(t, "abc-123", body.RequestID)
}
