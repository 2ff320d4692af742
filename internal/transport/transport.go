// Package transport wraps outbound HTTP with per-host rate limiting,
// circuit breaking and request metrics.
package transport

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"arbix/internal/metrics"

	"github.com/go-faster/errors"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Config holds transport configuration
type Config struct {
	Timeout   time.Duration
	RPS       float64
	Burst     int
	UserAgent string
	Breaker   BreakerConfig
}

// DefaultConfig returns conservative defaults suitable for public market APIs
func DefaultConfig() Config {
	return Config{
		Timeout:   10 * time.Second,
		RPS:       5,
		Burst:     5,
		UserAgent: "arbix/1.0",
		Breaker: BreakerConfig{
			ConsecutiveFailures: 5,
			Interval:            60 * time.Second,
			Timeout:             30 * time.Second,
		},
	}
}

// StatusError is returned for upstream responses the breaker counts as failures
type StatusError struct {
	Host       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Host, e.StatusCode, e.Body)
}

// Transport is an http.RoundTripper that rate limits and circuit breaks per host
type Transport struct {
	cfg      Config
	base     http.RoundTripper
	limiter  *Limiter
	breakers *breakerSet
	metrics  *metrics.Registry
}

// New creates a transport; m may be nil
func New(cfg Config, m *metrics.Registry) *Transport {
	t := &Transport{
		cfg:     cfg,
		base:    http.DefaultTransport,
		limiter: NewLimiter(cfg.RPS, cfg.Burst),
		metrics: m,
	}
	t.breakers = newBreakerSet(cfg.Breaker, t.recordBreakerState)
	return t
}

// WithBase replaces the underlying round tripper (used by tests)
func (t *Transport) WithBase(base http.RoundTripper) *Transport {
	t.base = base
	return t
}

// Client returns an *http.Client that sends every request through the transport
func (t *Transport) Client() *http.Client {
	return &http.Client{
		Transport: t,
		Timeout:   t.cfg.Timeout,
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := req.URL.Host

	if err := t.limiter.Wait(req.Context(), host); err != nil {
		t.recordError(host, "rate_limit_wait")
		return nil, errors.Wrapf(err, "rate limit wait for %s", host)
	}

	if t.cfg.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.cfg.UserAgent)
	}

	start := time.Now()
	out, err := t.breakers.get(host).Execute(func() (interface{}, error) {
		resp, err := t.base.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &StatusError{Host: host, StatusCode: resp.StatusCode, Body: string(body)}
		}
		return resp, nil
	})
	elapsed := time.Since(start)

	if err != nil {
		kind := "transport"
		var statusErr *StatusError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			kind = "circuit_open"
		case errors.As(err, &statusErr):
			kind = fmt.Sprintf("http_%d", statusErr.StatusCode)
		}
		t.recordError(host, kind)
		t.observe(host, "error", elapsed)
		log.Debug().Err(err).Str("host", host).Dur("duration", elapsed).Msg("upstream request failed")
		return nil, err
	}

	t.observe(host, "ok", elapsed)
	return out.(*http.Response), nil
}

func (t *Transport) observe(host, result string, d time.Duration) {
	if t.metrics == nil {
		return
	}
	t.metrics.UpstreamDuration.WithLabelValues(host, result).Observe(d.Seconds())
}

func (t *Transport) recordError(host, kind string) {
	if t.metrics == nil {
		return
	}
	t.metrics.UpstreamErrors.WithLabelValues(host, kind).Inc()
}

func (t *Transport) recordBreakerState(host string, state gobreaker.State) {
	if t.metrics == nil {
		return
	}
	var v float64
	switch state {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	t.metrics.BreakerState.WithLabelValues(host).Set(v)
}
