// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package sync

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/flipmoo/begripp-sub003/internal/logging"
	"github.com/flipmoo/begripp-sub003/internal/metrics"
	"github.com/flipmoo/begripp-sub003/internal/models/gripp"
)

// BreakerClient wraps a Caller with a circuit breaker so a hard
// upstream outage fails fast instead of burning the retry budget of
// every window in turn.
type BreakerClient struct {
	inner   Caller
	breaker *gobreaker.CircuitBreaker[*gripp.Result]
}

// NewBreakerClient wraps inner. The breaker opens at 60% failures over
// at least 10 requests and probes again after 30 seconds.
func NewBreakerClient(inner Caller) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        "gripp-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	}

	return &BreakerClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[*gripp.Result](settings),
	}
}

// Do executes the call through the breaker.
func (b *BreakerClient) Do(ctx context.Context, req gripp.Request) (*gripp.Result, error) {
	return b.breaker.Execute(func() (*gripp.Result, error) {
		return b.inner.Do(ctx, req)
	})
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
