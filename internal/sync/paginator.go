// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/flipmoo/begripp-sub003/internal/logging"
	"github.com/flipmoo/begripp-sub003/internal/models/gripp"
)

// paginator drains offset-paginated list calls. Page requests within a
// window are spaced by pageDelay; each page fetch runs under the shared
// retry policy.
type paginator struct {
	client    Caller
	retry     *RetryPolicy
	pageSize  int
	pageDelay time.Duration
}

// listRequestFunc builds the request for one page at the given offset.
type listRequestFunc func(firstResult, maxResults int) gripp.Request

// fetchAll drains every page of one list call and returns the raw rows
// in upstream order. Pagination continues while the page came back full
// AND the upstream still signals more data, by flag or by reported
// total. Both checks are needed: the flag has been observed stale, and
// the total has been observed to lag appends made mid-pagination.
func (p *paginator) fetchAll(ctx context.Context, label string, buildReq listRequestFunc) ([]json.RawMessage, error) {
	var rows []json.RawMessage
	offset := 0

	for {
		req := buildReq(offset, p.pageSize)

		var result *pageResult
		err := p.retry.Do(ctx, label, func(ctx context.Context) error {
			r, callErr := p.client.Do(ctx, req)
			if callErr != nil {
				return callErr
			}
			result = &pageResult{rows: r.Rows, count: r.Count, more: r.More()}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("fetch %s at offset %d: %w", label, offset, err)
		}

		rows = append(rows, result.rows...)
		offset += len(result.rows)

		logging.Debug().
			Str("operation", label).
			Int("page_rows", len(result.rows)).
			Int("fetched", offset).
			Int("reported_total", result.count).
			Msg("Fetched page")

		if len(result.rows) < p.pageSize {
			return rows, nil
		}
		if !result.more && offset >= result.count {
			return rows, nil
		}

		if p.pageDelay > 0 {
			select {
			case <-time.After(p.pageDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
}

type pageResult struct {
	rows  []json.RawMessage
	count int
	more  bool
}

// decodeRows unmarshals raw upstream rows into T, dropping rows that
// fail to decode. A feed with a few malformed rows still syncs; the
// drops surface in the skipped count.
func decodeRows[T any](rows []json.RawMessage, label string) (decoded []T, dropped int) {
	decoded = make([]T, 0, len(rows))
	for _, raw := range rows {
		var record T
		if err := json.Unmarshal(raw, &record); err != nil {
			dropped++
			logging.Warn().Err(err).Str("operation", label).Msg("Dropping undecodable row")
			continue
		}
		decoded = append(decoded, record)
	}
	return decoded, dropped
}
