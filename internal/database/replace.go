// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/flipmoo/begripp-sub003/internal/logging"
	"github.com/flipmoo/begripp-sub003/internal/models"
)

// ErrNothingPersisted is returned when a replace fetched rows upstream
// but persisted none of them. The transaction is rolled back so the
// previous mirror contents survive intact.
var ErrNothingPersisted = errors.New("no records persisted despite non-empty input")

var validate = validator.New()

// replaceSpec describes one entity replace: the delete clause that
// clears the scope being rewritten, and the insert shape.
type replaceSpec struct {
	table       string
	columns     []string
	deleteQuery string
	deleteArgs  []interface{}
}

// replaceRows atomically deletes the scope named by rs and inserts rows in
// multi-row batches. Inserts use ON CONFLICT DO NOTHING (DuckDB-native)
// so a constraint-violating record is skipped and counted through the
// rows-affected delta instead of aborting the transaction.
//
// input is the record count before validation filtering. When input is
// positive but nothing survives to commit, the transaction rolls back
// with ErrNothingPersisted; all-invalid input must never wipe a table.
func (db *DB) replaceRows(ctx context.Context, rs replaceSpec, rows [][]interface{}, input int) (persisted, skipped int, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logging.Error().
					Err(rbErr).
					AnErr("original_error", err).
					Str("table", rs.table).
					Msg("Transaction rollback failed")
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, rs.deleteQuery, rs.deleteArgs...); err != nil {
		return 0, 0, fmt.Errorf("failed to clear %s: %w", rs.table, err)
	}

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(rs.columns)), ", ") + ")"
	insertPrefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ",
		rs.table, strings.Join(rs.columns, ", "))

	for start := 0; start < len(rows); start += db.batchSize {
		end := start + db.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]

		query := insertPrefix +
			strings.TrimSuffix(strings.Repeat(placeholder+", ", len(batch)), ", ") +
			" ON CONFLICT DO NOTHING"
		args := make([]interface{}, 0, len(batch)*len(rs.columns))
		for _, row := range batch {
			args = append(args, row...)
		}

		result, batchErr := tx.ExecContext(ctx, query, args...)
		if batchErr != nil {
			err = fmt.Errorf("failed to insert %s batch: %w", rs.table, batchErr)
			return 0, 0, err
		}

		inserted := int64(len(batch))
		if affected, raErr := result.RowsAffected(); raErr == nil {
			inserted = affected
		}
		persisted += int(inserted)
		if conflicts := len(batch) - int(inserted); conflicts > 0 {
			skipped += conflicts
			logging.Warn().
				Str("table", rs.table).
				Int("conflicts", conflicts).
				Msg("Skipped conflicting records in batch")
		}
	}

	if input > 0 && persisted == 0 {
		err = fmt.Errorf("%s: %w", rs.table, ErrNothingPersisted)
		return 0, skipped, err
	}

	if err = tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit %s replace: %w", rs.table, err)
	}
	return persisted, skipped, nil
}

// ReplaceEmployees rewrites the full employees table.
func (db *DB) ReplaceEmployees(ctx context.Context, employees []models.Employee) (persisted, skipped int, err error) {
	now := time.Now()
	rows := make([][]interface{}, 0, len(employees))
	for i := range employees {
		e := &employees[i]
		if vErr := validate.Struct(e); vErr != nil {
			skipped++
			logging.Warn().Err(vErr).Int("id", e.ID).Msg("Skipping invalid employee record")
			continue
		}
		rows = append(rows, []interface{}{
			e.ID, e.FirstName, e.LastName, nullString(e.Email),
			nullInt(e.Number), nullString(e.Function), e.Active, now,
		})
	}

	p, s, err := db.replaceRows(ctx, replaceSpec{
		table:       "employees",
		columns:     []string{"id", "firstname", "lastname", "email", "number", "function", "active", "synced_at"},
		deleteQuery: "DELETE FROM employees",
	}, rows, len(employees))
	return p, s + skipped, err
}

// ReplaceContracts rewrites the full contracts table.
func (db *DB) ReplaceContracts(ctx context.Context, contracts []models.Contract) (persisted, skipped int, err error) {
	now := time.Now()
	rows := make([][]interface{}, 0, len(contracts))
	for i := range contracts {
		c := &contracts[i]
		if vErr := validate.Struct(c); vErr != nil {
			skipped++
			logging.Warn().Err(vErr).Int("id", c.ID).Msg("Skipping invalid contract record")
			continue
		}
		rows = append(rows, []interface{}{
			c.ID, c.EmployeeID, c.StartDate.Time, nullDate(c.EndDate),
			nullFloat(c.HoursPerWeek), c.Internal, now,
		})
	}

	p, s, err := db.replaceRows(ctx, replaceSpec{
		table:       "contracts",
		columns:     []string{"id", "employee_id", "startdate", "enddate", "hours_per_week", "internal", "synced_at"},
		deleteQuery: "DELETE FROM contracts",
	}, rows, len(contracts))
	return p, s + skipped, err
}

// ReplaceProjects rewrites the full projects table.
func (db *DB) ReplaceProjects(ctx context.Context, projects []models.Project) (persisted, skipped int, err error) {
	now := time.Now()
	rows := make([][]interface{}, 0, len(projects))
	for i := range projects {
		p := &projects[i]
		if vErr := validate.Struct(p); vErr != nil {
			skipped++
			logging.Warn().Err(vErr).Int("id", p.ID).Msg("Skipping invalid project record")
			continue
		}
		rows = append(rows, []interface{}{
			p.ID, nullInt(p.Number), p.Name, nullString(p.CompanyName),
			p.Archived, nullDate(p.StartDate), nullDate(p.Deadline), now,
		})
	}

	p, s, err := db.replaceRows(ctx, replaceSpec{
		table:       "projects",
		columns:     []string{"id", "number", "name", "company_name", "archived", "startdate", "deadline", "synced_at"},
		deleteQuery: "DELETE FROM projects",
	}, rows, len(projects))
	return p, s + skipped, err
}

// ReplaceInvoices rewrites the full invoices table.
func (db *DB) ReplaceInvoices(ctx context.Context, invoices []models.Invoice) (persisted, skipped int, err error) {
	now := time.Now()
	rows := make([][]interface{}, 0, len(invoices))
	for i := range invoices {
		inv := &invoices[i]
		if vErr := validate.Struct(inv); vErr != nil {
			skipped++
			logging.Warn().Err(vErr).Int("id", inv.ID).Msg("Skipping invalid invoice record")
			continue
		}
		rows = append(rows, []interface{}{
			inv.ID, nullInt(inv.Number), nullDate(inv.Date), nullString(inv.CompanyName),
			nullFloat(inv.TotalExclVAT), nullFloat(inv.TotalInclVAT), nullString(inv.Status), now,
		})
	}

	p, s, err := db.replaceRows(ctx, replaceSpec{
		table:       "invoices",
		columns:     []string{"id", "number", "date", "company_name", "total_excl_vat", "total_incl_vat", "status", "synced_at"},
		deleteQuery: "DELETE FROM invoices",
	}, rows, len(invoices))
	return p, s + skipped, err
}

// ReplaceHours rewrites the hours rows whose date falls inside the
// inclusive range; rows outside the range are left untouched so
// incremental resyncs never clobber history they did not fetch.
func (db *DB) ReplaceHours(ctx context.Context, entries []models.HourEntry, dateRange models.DateRange) (persisted, skipped int, err error) {
	now := time.Now()
	rows := make([][]interface{}, 0, len(entries))
	for i := range entries {
		h := &entries[i]
		if vErr := validate.Struct(h); vErr != nil {
			skipped++
			logging.Warn().Err(vErr).Int("id", h.ID).Msg("Skipping invalid hour entry")
			continue
		}
		rows = append(rows, []interface{}{
			h.ID, h.EmployeeID, nullInt(h.ProjectID), h.Date.Time,
			h.Amount, nullString(h.Status), nullString(h.Description), now,
		})
	}

	p, s, err := db.replaceRows(ctx, replaceSpec{
		table:       "hours",
		columns:     []string{"id", "employee_id", "project_id", "date", "amount", "status", "description", "synced_at"},
		deleteQuery: "DELETE FROM hours WHERE date >= ? AND date <= ?",
		deleteArgs:  []interface{}{dateRange.Start.Time, dateRange.End.Time},
	}, rows, len(entries))
	return p, s + skipped, err
}

// ReplaceAbsences rewrites the absence rows inside the inclusive range.
func (db *DB) ReplaceAbsences(ctx context.Context, absences []models.AbsenceRequest, dateRange models.DateRange) (persisted, skipped int, err error) {
	now := time.Now()
	rows := make([][]interface{}, 0, len(absences))
	for i := range absences {
		a := &absences[i]
		if vErr := validate.Struct(a); vErr != nil {
			skipped++
			logging.Warn().Err(vErr).Int("id", a.ID).Msg("Skipping invalid absence record")
			continue
		}
		rows = append(rows, []interface{}{
			a.ID, a.EmployeeID, a.Date.Time, a.Amount,
			nullString(a.Type), nullString(a.Status), nullString(a.Description), now,
		})
	}

	p, s, err := db.replaceRows(ctx, replaceSpec{
		table:       "absences",
		columns:     []string{"id", "employee_id", "date", "amount", "type", "status", "description", "synced_at"},
		deleteQuery: "DELETE FROM absences WHERE date >= ? AND date <= ?",
		deleteArgs:  []interface{}{dateRange.Start.Time, dateRange.End.Time},
	}, rows, len(absences))
	return p, s + skipped, err
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(n *int) interface{} {
	if n == nil {
		return nil
	}
	return *n
}

func nullFloat(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func nullDate(d *models.Date) interface{} {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.Time
}
