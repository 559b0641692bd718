// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flipmoo/begripp-sub003/internal/models"
)

// ListEmployees returns mirrored employees ordered by last name. With
// activeOnly set, inactive employees are filtered out.
func (db *DB) ListEmployees(ctx context.Context, activeOnly bool) ([]models.Employee, error) {
	query := `SELECT id, firstname, lastname, email, number, function, active
		FROM employees`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY lastname, firstname, id`

	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	employees := make([]models.Employee, 0)
	for rows.Next() {
		var (
			e        models.Employee
			email    sql.NullString
			number   sql.NullInt64
			function sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName, &email, &number, &function, &e.Active); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		if email.Valid {
			e.Email = &email.String
		}
		if number.Valid {
			n := int(number.Int64)
			e.Number = &n
		}
		if function.Valid {
			e.Function = &function.String
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}
	return employees, nil
}

// HoursSummaryRow aggregates one employee's written and absence hours
// over a date range, with contract capacity alongside for utilization.
type HoursSummaryRow struct {
	EmployeeID   int      `json:"employee_id"`
	FirstName    string   `json:"firstname"`
	LastName     string   `json:"lastname"`
	WrittenHours float64  `json:"written_hours"`
	AbsenceHours float64  `json:"absence_hours"`
	HoursPerWeek *float64 `json:"hours_per_week,omitempty"`
}

// HoursSummary aggregates hours and absences per active employee over
// the inclusive date range. Employees with no rows in the range still
// appear, with zero totals.
func (db *DB) HoursSummary(ctx context.Context, dateRange models.DateRange) ([]HoursSummaryRow, error) {
	query := `SELECT
			e.id, e.firstname, e.lastname,
			COALESCE(h.total, 0) AS written_hours,
			COALESCE(a.total, 0) AS absence_hours,
			c.hours_per_week
		FROM employees e
		LEFT JOIN (
			SELECT employee_id, SUM(amount) AS total
			FROM hours WHERE date >= ? AND date <= ?
			GROUP BY employee_id
		) h ON h.employee_id = e.id
		LEFT JOIN (
			SELECT employee_id, SUM(amount) AS total
			FROM absences WHERE date >= ? AND date <= ?
			GROUP BY employee_id
		) a ON a.employee_id = e.id
		LEFT JOIN (
			SELECT employee_id, MAX(hours_per_week) AS hours_per_week
			FROM contracts
			WHERE startdate <= ? AND (enddate IS NULL OR enddate >= ?)
			GROUP BY employee_id
		) c ON c.employee_id = e.id
		WHERE e.active
		ORDER BY e.lastname, e.firstname, e.id`

	rows, err := db.conn.QueryContext(ctx, query,
		dateRange.Start.Time, dateRange.End.Time,
		dateRange.Start.Time, dateRange.End.Time,
		dateRange.End.Time, dateRange.Start.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to query hours summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	summary := make([]HoursSummaryRow, 0)
	for rows.Next() {
		var (
			row          HoursSummaryRow
			hoursPerWeek sql.NullFloat64
		)
		if err := rows.Scan(&row.EmployeeID, &row.FirstName, &row.LastName,
			&row.WrittenHours, &row.AbsenceHours, &hoursPerWeek); err != nil {
			return nil, fmt.Errorf("failed to scan hours summary row: %w", err)
		}
		if hoursPerWeek.Valid {
			row.HoursPerWeek = &hoursPerWeek.Float64
		}
		summary = append(summary, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hours summary: %w", err)
	}
	return summary, nil
}

// CountRows returns the mirrored row count for one entity table.
func (db *DB) CountRows(ctx context.Context, entityType models.EntityType) (int, error) {
	if !entityType.Valid() {
		return 0, fmt.Errorf("unknown entity type %q", entityType)
	}
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", string(entityType))
	if err := db.conn.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", entityType, err)
	}
	return count, nil
}

// OldestSyncedAt returns the oldest synced_at across the entity tables,
// used by the health endpoint to report mirror staleness. Returns the
// zero time when nothing has synced yet.
func (db *DB) OldestSyncedAt(ctx context.Context) (time.Time, error) {
	var oldest time.Time
	for _, t := range models.SyncOrder {
		var ts sql.NullTime
		query := fmt.Sprintf("SELECT MAX(synced_at) FROM %s", string(t))
		if err := db.conn.QueryRowContext(ctx, query).Scan(&ts); err != nil {
			return time.Time{}, fmt.Errorf("failed to query synced_at for %s: %w", t, err)
		}
		if !ts.Valid {
			continue
		}
		if oldest.IsZero() || ts.Time.Before(oldest) {
			oldest = ts.Time
		}
	}
	return oldest, nil
}
