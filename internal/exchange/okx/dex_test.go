package okx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"arbix/internal/exchange"
	"arbix/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var weth = types.Token{ChainIndex: "1", Address: "0xC02aaA39b223FE8D0A0E5C4F27eAD9083C756Cc2", Symbol: "WETH"}

func expectedSign(secret, prehash string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(prehash))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSigner_ApplyHeaders(t *testing.T) {
	s := NewSigner("key", "secret", "pass")
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 30, 45, 123_000_000, time.UTC) }

	req := httptest.NewRequest(http.MethodGet, "https://web3.okx.com/api/v5/x?a=1", nil)
	s.Apply(req, "/api/v5/x?a=1", "")

	assert.Equal(t, "key", req.Header.Get("OK-ACCESS-KEY"))
	assert.Equal(t, "pass", req.Header.Get("OK-ACCESS-PASSPHRASE"))
	assert.Equal(t, "2024-05-01T12:30:45.123Z", req.Header.Get("OK-ACCESS-TIMESTAMP"))
	assert.Equal(t,
		expectedSign("secret", "2024-05-01T12:30:45.123ZGET/api/v5/x?a=1"),
		req.Header.Get("OK-ACCESS-SIGN"))
}

func TestDexMarket_GetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, priceInfoPath, r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var refs []TokenRef
		assert.NoError(t, json.Unmarshal(body, &refs))
		if assert.Len(t, refs, 1) {
			assert.Equal(t, "1", refs[0].ChainIndex)
			assert.Equal(t, weth.Address, refs[0].TokenContractAddress)
		}

		ts := r.Header.Get("OK-ACCESS-TIMESTAMP")
		prehash := ts + http.MethodPost + priceInfoPath + string(body)
		assert.Equal(t, expectedSign("s3cret", prehash), r.Header.Get("OK-ACCESS-SIGN"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		w.Write([]byte(`{"code":"0","msg":"","data":[{"chainIndex":"1","tokenContractAddress":"0xc02a","price":"3150.25","priceChange24H":"1.5","volume24H":"100","marketCap":"1000"}]}`))
	}))
	defer srv.Close()

	m := NewDexMarket(Config{BaseURL: srv.URL, APIKey: "k", SecretKey: "s3cret", Passphrase: "p"}, srv.Client())

	q, err := m.GetPrice(context.Background(), weth)
	require.NoError(t, err)
	assert.Equal(t, exchange.OKX, q.Source)
	assert.True(t, q.Price.Equal(decimal.RequireFromString("3150.25")))
	assert.Equal(t, int64(1), m.Health().MessageCount)
}

func TestDexMarket_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		notFound bool
	}{
		{name: "api error code", status: http.StatusOK, body: `{"code":"50011","msg":"rate limited","data":[]}`},
		{name: "empty data", status: http.StatusOK, body: `{"code":"0","msg":"","data":[]}`, notFound: true},
		{name: "bad request", status: http.StatusBadRequest, body: `{"msg":"bad"}`},
		{name: "garbage", status: http.StatusOK, body: `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			m := NewDexMarket(Config{BaseURL: srv.URL}, srv.Client())
			_, err := m.GetPrice(context.Background(), weth)
			require.Error(t, err)
			assert.Equal(t, tt.notFound, errors.Is(err, exchange.ErrPriceNotFound))
		})
	}
}

func TestDexMarket_InvalidToken(t *testing.T) {
	m := NewDexMarket(Config{BaseURL: "http://127.0.0.1:1"}, nil)
	_, err := m.GetPrice(context.Background(), types.Token{ChainIndex: "1"})
	assert.ErrorIs(t, err, types.ErrInvalidToken)
}

func TestNewDexMarket_ClientTimeout(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		expected time.Duration
	}{
		{"configured", 3 * time.Second, 3 * time.Second},
		{"default", 0, defaultTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewDexMarket(Config{Timeout: tt.timeout}, nil)
			assert.Equal(t, tt.expected, m.client.Timeout)
		})
	}

	shared := &http.Client{}
	assert.Same(t, shared, NewDexMarket(Config{Timeout: time.Second}, shared).client)
}
