// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/flipmoo/begripp-sub003/internal/models"
)

// UpsertSyncStatus overwrites the bookkeeping row for one entity type.
// Only the latest run per type is kept.
func (db *DB) UpsertSyncStatus(ctx context.Context, status *models.SyncStatus) error {
	query := `INSERT OR REPLACE INTO sync_status (
		entity_type, run_id, last_run_at, outcome, message,
		duration_ms, records_fetched, records_persisted, records_skipped
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		string(status.EntityType), status.RunID, status.LastRunAt,
		string(status.Outcome), nullString(status.Message), status.DurationMs,
		status.RecordsFetched, status.RecordsPersisted, status.RecordsSkipped,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sync status for %s: %w", status.EntityType, err)
	}
	return nil
}

// GetSyncStatus returns the latest run for one entity type, or nil when
// the type has never been synced.
func (db *DB) GetSyncStatus(ctx context.Context, entityType models.EntityType) (*models.SyncStatus, error) {
	query := `SELECT entity_type, run_id, last_run_at, outcome, message,
		duration_ms, records_fetched, records_persisted, records_skipped
		FROM sync_status WHERE entity_type = ?`

	status, err := scanSyncStatus(db.conn.QueryRowContext(ctx, query, string(entityType)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query sync status for %s: %w", entityType, err)
	}
	return status, nil
}

// ListSyncStatuses returns the latest run for every entity type that
// has ever synced, in sync order.
func (db *DB) ListSyncStatuses(ctx context.Context) ([]models.SyncStatus, error) {
	query := `SELECT entity_type, run_id, last_run_at, outcome, message,
		duration_ms, records_fetched, records_persisted, records_skipped
		FROM sync_status`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync statuses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byType := make(map[models.EntityType]models.SyncStatus)
	for rows.Next() {
		status, scanErr := scanSyncStatus(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan sync status: %w", scanErr)
		}
		byType[status.EntityType] = *status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sync statuses: %w", err)
	}

	statuses := make([]models.SyncStatus, 0, len(byType))
	for _, t := range models.SyncOrder {
		if status, ok := byType[t]; ok {
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSyncStatus(row rowScanner) (*models.SyncStatus, error) {
	var (
		status     models.SyncStatus
		entityType string
		outcome    string
		message    sql.NullString
	)
	err := row.Scan(&entityType, &status.RunID, &status.LastRunAt, &outcome,
		&message, &status.DurationMs, &status.RecordsFetched,
		&status.RecordsPersisted, &status.RecordsSkipped)
	if err != nil {
		return nil, err
	}
	status.EntityType = models.EntityType(entityType)
	status.Outcome = models.SyncOutcome(outcome)
	if message.Valid {
		status.Message = &message.String
	}
	return &status, nil
}
