// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package models

import "time"

// SyncOutcome is the terminal state of one sync run.
type SyncOutcome string

const (
	SyncSuccess SyncOutcome = "success"
	SyncError   SyncOutcome = "error"
)

// SyncStatus records the latest sync run for one entity type. It is
// overwritten on every run; there is no history. The sync orchestrator
// is the only writer.
type SyncStatus struct {
	EntityType EntityType  `json:"entity_type"`
	RunID      string      `json:"run_id"`
	LastRunAt  time.Time   `json:"last_run_at"`
	Outcome    SyncOutcome `json:"outcome"`
	Message    *string     `json:"message,omitempty"`
	DurationMs int64       `json:"duration_ms"`

	// Reconciliation counts: fetched is pre-dedup, persisted is rows
	// committed, skipped is rows that failed individually.
	RecordsFetched   int `json:"records_fetched"`
	RecordsPersisted int `json:"records_persisted"`
	RecordsSkipped   int `json:"records_skipped"`
}

// SyncAllResult aggregates a full sync: one bool per entity type plus
// overall success (the critical types both committed).
type SyncAllResult struct {
	Success   bool                `json:"success"`
	StartedAt time.Time           `json:"started_at"`
	Duration  time.Duration       `json:"duration"`
	Results   map[EntityType]bool `json:"results"`
}

// DateRange is an inclusive calendar range for windowed syncs.
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}
