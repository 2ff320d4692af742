package transport

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerConfig configures the per-host circuit breakers
type BreakerConfig struct {
	ConsecutiveFailures uint32
	Interval            time.Duration
	Timeout             time.Duration
}

// breakerSet lazily creates one circuit breaker per upstream host
type breakerSet struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[string]*gobreaker.CircuitBreaker
	onChange func(host string, to gobreaker.State)
}

func newBreakerSet(cfg BreakerConfig, onChange func(string, gobreaker.State)) *breakerSet {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	return &breakerSet{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		onChange: onChange,
	}
}

func (s *breakerSet) get(host string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[host]; ok {
		return cb
	}

	threshold := s.cfg.ConsecutiveFailures
	st := gobreaker.Settings{
		Name:     host,
		Interval: s.cfg.Interval,
		Timeout:  s.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("host", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
			if s.onChange != nil {
				s.onChange(name, to)
			}
		},
	}
	cb := gobreaker.NewCircuitBreaker(st)
	s.breakers[host] = cb
	return cb
}
