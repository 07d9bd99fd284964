// Package resilience wraps calls to the routing providers with a circuit
// breaker, a per-call timeout and bounded retries, and keeps a registry of
// provider health for the ops endpoints.
package resilience

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker in front of one provider.
type BreakerConfig struct {
	Name string

	// HalfOpenRequests may probe the provider while half-open.
	HalfOpenRequests uint32

	// ResetInterval clears the closed-state counts; zero never clears them.
	ResetInterval time.Duration

	// OpenFor is how long the breaker stays open before probing again.
	OpenFor time.Duration

	// Trip decides when to open. Nil means TripOnFailures.
	Trip func(gobreaker.Counts) bool

	// OnStateChange replaces the default transition log line.
	OnStateChange func(name string, from, to gobreaker.State)

	Logger zerolog.Logger
}

// DefaultBreakerConfig opens for 30s at a time. A route is only worth
// waiting for while an emergency is live, so the breaker retries sooner
// than a general API client would.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		HalfOpenRequests: 1,
		OpenFor:          30 * time.Second,
		Trip:             TripOnFailures,
	}
}

// TripOnFailures opens after five failures in a row, or once five requests
// have been seen and at least half failed.
func TripOnFailures(counts gobreaker.Counts) bool {
	switch {
	case counts.ConsecutiveFailures >= 5:
		return true
	case counts.Requests < 5:
		return false
	default:
		return 2*counts.TotalFailures >= counts.Requests
	}
}

func newBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker[*http.Response] {
	trip := cfg.Trip
	if trip == nil {
		trip = TripOnFailures
	}

	onChange := cfg.OnStateChange
	if onChange == nil {
		logger := cfg.Logger
		onChange = func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("provider", name).
				Stringer("from", from).
				Stringer("to", to).
				Msg("circuit breaker state changed")
		}
	}

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.HalfOpenRequests,
		Interval:      cfg.ResetInterval,
		Timeout:       cfg.OpenFor,
		ReadyToTrip:   trip,
		OnStateChange: onChange,
	})
}
