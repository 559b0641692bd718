// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flipmoo/begripp-sub003/internal/logging"
	"github.com/flipmoo/begripp-sub003/internal/metrics"
)

// RetryPolicy retries an operation with exponential backoff. One policy
// instance is shared by every fetch in the engine so behavior is
// uniform: attempt n (1-based) sleeps BaseDelay * 2^(n-1) before the
// next try.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay seeds the exponential backoff.
	BaseDelay time.Duration

	// Retryable decides whether an error is worth another attempt.
	// A nil predicate retries everything.
	Retryable func(error) bool

	// Sleep is the backoff wait, injectable for tests. A nil Sleep
	// uses a context-cancellable timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryable retries upstream-side failures and rate limiting,
// but not context cancellation.
func DefaultRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrUpstream) || errors.Is(err, ErrRateLimited)
}

// NewRetryPolicy builds the engine-wide policy from configuration.
func NewRetryPolicy(maxRetries int, baseDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		Retryable:  DefaultRetryable,
	}
}

// Do runs op until it succeeds, exhausts the retry budget, or hits a
// non-retryable error. The returned error wraps the last failure.
func (p *RetryPolicy) Do(ctx context.Context, label string, op func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.BaseDelay * time.Duration(1<<uint(attempt-1))
			logging.Debug().
				Str("operation", label).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying after backoff")
			metrics.UpstreamRetries.WithLabelValues(label).Inc()
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", label, p.MaxRetries+1, lastErr)
}

func (p *RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
