// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

// Package sync implements the Gripp synchronization engine: the API
// client, the windowed paginator, and the orchestrator that mirrors
// upstream entities into DuckDB and invalidates the cache afterwards.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/flipmoo/begripp-sub003/internal/config"
	"github.com/flipmoo/begripp-sub003/internal/logging"
	"github.com/flipmoo/begripp-sub003/internal/metrics"
	"github.com/flipmoo/begripp-sub003/internal/models/gripp"
)

const maxErrorBodySize = 64 * 1024

// ErrRateLimited marks a 429 from upstream after exhausting the
// client's own retry budget.
var ErrRateLimited = errors.New("rate limited by upstream")

// ErrUpstream marks a Gripp-level error (the envelope's error field or
// a non-2xx status). Upstream errors are retryable; decode errors on
// our side are not.
var ErrUpstream = errors.New("upstream error")

// Caller executes one Gripp API call. The concrete client, the circuit
// breaker wrapper, and test fakes all satisfy it.
type Caller interface {
	Do(ctx context.Context, req gripp.Request) (*gripp.Result, error)
}

// Client is the HTTP client for the Gripp API. A token-bucket limiter
// caps the request rate below upstream's enforcement threshold; 429
// responses are additionally retried in place with exponential backoff,
// honoring Retry-After when present.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	requestID  atomic.Int64

	rateLimitRetries int
	retryBaseDelay   time.Duration
}

// NewClient builds a client from configuration.
func NewClient(cfg *config.GrippConfig) *Client {
	return &Client{
		baseURL:          cfg.URL,
		token:            cfg.Token,
		httpClient:       &http.Client{Timeout: cfg.RequestTimeout},
		limiter:          rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		rateLimitRetries: 3,
		retryBaseDelay:   time.Second,
	}
}

// Do executes one API call and returns its result payload. The request
// id is assigned here so callers never reuse one.
func (c *Client) Do(ctx context.Context, req gripp.Request) (*gripp.Result, error) {
	req.ID = int(c.requestID.Add(1))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request %s: %w", req.Method, err)
	}

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		result, retryAfter, err := c.doOnce(ctx, req.Method, body)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrRateLimited) || attempt >= c.rateLimitRetries {
			return nil, err
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter > 0 {
			delay = retryAfter
		}
		logging.Warn().
			Str("method", req.Method).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Upstream rate limit hit, backing off")
		metrics.UpstreamRetries.WithLabelValues(req.Method).Inc()

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// doOnce performs a single HTTP round trip. A positive retryAfter is
// the upstream's requested pause for 429 responses.
func (c *Client) doOnce(ctx context.Context, method string, body []byte) (result *gripp.Result, retryAfter time.Duration, err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		switch {
		case errors.Is(err, ErrRateLimited):
			outcome = "rate_limited"
		case err != nil:
			outcome = "error"
		}
		metrics.RecordUpstreamRequest(method, outcome, time.Since(start))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrUpstream, method, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		drainBody(resp.Body)
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, 0, fmt.Errorf("%w: %s returned HTTP %d: %s",
			ErrUpstream, method, resp.StatusCode, readBodyForError(resp.Body))
	}

	var envelope gripp.Response
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, 0, fmt.Errorf("%w: %s: failed to decode response: %v", ErrUpstream, method, err)
	}
	if envelope.Error != nil {
		return nil, 0, fmt.Errorf("%w: %s: %s", ErrUpstream, method, *envelope.Error)
	}
	if envelope.Result == nil {
		return nil, 0, fmt.Errorf("%w: %s: response has neither result nor error", ErrUpstream, method)
	}
	return envelope.Result, 0, nil
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// readBodyForError reads a bounded amount of the response body for
// inclusion in an error message.
func readBodyForError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil || len(data) == 0 {
		return "<unreadable body>"
	}
	return string(data)
}

func drainBody(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBodySize))
}
