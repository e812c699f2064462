package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/itechmeat/jeex/pkg/metrics"
)

// BreakerConfig names the three tunables spec's circuit breaker contract
// is defined in terms of.
type BreakerConfig struct {
	FailureThreshold uint32
	SuccessThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultBreakerConfig returns the module's default parameters: trip
// after 5 consecutive failures, require 2 consecutive successes in
// HalfOpen to close, and wait 30s before probing again.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, OpenTimeout: 30 * time.Second}
}

// providerBreaker wraps one gobreaker.CircuitBreaker per (provider,
// process), matching its Closed/Open/HalfOpen contract onto the spec:
// gobreaker's MaxRequests caps how many trial calls HalfOpen allows
// through and, since a single failure among them immediately reopens the
// breaker, doubles as the HalfOpen success_threshold — every permitted
// trial call must succeed before the breaker closes.
type providerBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func newProviderBreaker(provider string, cfg BreakerConfig) *providerBreaker {
	settings := gobreaker.Settings{
		Name:        provider,
		MaxRequests: cfg.SuccessThreshold,
		Interval:    0,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			metrics.RecordBreakerTransition(name, to.String())
		},
	}
	return &providerBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// execute runs fn through the breaker. A rejection (open or too-many-
// half-open-requests) is surfaced as a distinct ErrorBreakerOpen so the
// manager can treat it as cross-provider retryable without retrying the
// same unhealthy provider.
func (b *providerBreaker) execute(ctx context.Context, provider, correlationID string, fn func(ctx context.Context) (GenerateResponse, error)) (GenerateResponse, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return GenerateResponse{}, newError(ErrorBreakerOpen, provider, correlationID, err.Error(), err)
		}
		return GenerateResponse{}, err
	}
	return result.(GenerateResponse), nil
}
