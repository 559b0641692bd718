// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package sync

import (
	"time"

	"github.com/flipmoo/begripp-sub003/internal/models"
)

// window is one half-open [Start, End) slice of a sync range. Upstream
// "between" filters take the half-open pair directly, so consecutive
// windows share a boundary without overlapping.
type window struct {
	Start models.Date
	End   models.Date
}

// splitWindows cuts the inclusive request range into contiguous
// half-open windows of at most windowDays days. The final window's End
// is the day after the range's inclusive end, so the union of all
// windows covers the range exactly: no gaps, no overlap.
func splitWindows(dateRange models.DateRange, windowDays int) []window {
	if windowDays <= 0 {
		windowDays = 7
	}

	// Exclusive upper bound of the whole range.
	rangeEnd := models.Date{Time: dateRange.End.AddDate(0, 0, 1)}
	if !dateRange.Start.Before(rangeEnd.Time) {
		return nil
	}

	var windows []window
	cursor := dateRange.Start
	for cursor.Before(rangeEnd.Time) {
		next := models.Date{Time: cursor.AddDate(0, 0, windowDays)}
		if rangeEnd.Before(next.Time) {
			next = rangeEnd
		}
		windows = append(windows, window{Start: cursor, End: next})
		cursor = next
	}
	return windows
}

// days returns the number of calendar days the window spans.
func (w window) days() int {
	return int(w.End.Sub(w.Start.Time) / (24 * time.Hour))
}
