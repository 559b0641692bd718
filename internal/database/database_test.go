// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package database

import (
	"context"
	"testing"
	"time"

	"github.com/flipmoo/begripp-sub003/internal/config"
	"github.com/flipmoo/begripp-sub003/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 2}, 100)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func strPtr(s string) *string    { return &s }
func intPtr(n int) *int          { return &n }
func floatPtr(f float64) *float64 { return &f }

func testEmployees() []models.Employee {
	return []models.Employee{
		{ID: 1, FirstName: "Anna", LastName: "Bakker", Email: strPtr("anna@example.test"), Active: true},
		{ID: 2, FirstName: "Bram", LastName: "de Vries", Number: intPtr(12), Active: true},
		{ID: 3, FirstName: "Cas", LastName: "Jansen", Active: false},
	}
}

func TestSchemaBootstrapIdempotent(t *testing.T) {
	db := setupTestDB(t)

	// Re-running the DDL must not fail.
	if err := db.initSchema(context.Background()); err != nil {
		t.Fatalf("initSchema() second run error = %v", err)
	}
}

func TestReplaceEmployeesRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	persisted, skipped, err := db.ReplaceEmployees(ctx, testEmployees())
	if err != nil {
		t.Fatalf("ReplaceEmployees() error = %v", err)
	}
	if persisted != 3 || skipped != 0 {
		t.Errorf("ReplaceEmployees() = (%d, %d), want (3, 0)", persisted, skipped)
	}

	all, err := db.ListEmployees(ctx, false)
	if err != nil {
		t.Fatalf("ListEmployees() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("ListEmployees() len = %d, want 3", len(all))
	}
	// Ordered by last name.
	if all[0].LastName != "Bakker" {
		t.Errorf("first employee = %s, want Bakker", all[0].LastName)
	}
	if all[0].Email == nil || *all[0].Email != "anna@example.test" {
		t.Errorf("email pointer not round-tripped: %v", all[0].Email)
	}

	active, err := db.ListEmployees(ctx, true)
	if err != nil {
		t.Fatalf("ListEmployees(active) error = %v", err)
	}
	if len(active) != 2 {
		t.Errorf("ListEmployees(active) len = %d, want 2", len(active))
	}
}

func TestReplaceIsFullReplacement(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, _, err := db.ReplaceEmployees(ctx, testEmployees()); err != nil {
		t.Fatalf("first ReplaceEmployees() error = %v", err)
	}

	// Second sync returns a shrunk collection; stale rows must go.
	persisted, _, err := db.ReplaceEmployees(ctx, []models.Employee{
		{ID: 1, FirstName: "Anna", LastName: "Bakker", Active: true},
	})
	if err != nil {
		t.Fatalf("second ReplaceEmployees() error = %v", err)
	}
	if persisted != 1 {
		t.Errorf("persisted = %d, want 1", persisted)
	}

	all, err := db.ListEmployees(ctx, false)
	if err != nil {
		t.Fatalf("ListEmployees() error = %v", err)
	}
	if len(all) != 1 {
		t.Errorf("ListEmployees() len = %d after shrink, want 1", len(all))
	}
}

func TestReplaceSkipsInvalidRecords(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	persisted, skipped, err := db.ReplaceEmployees(ctx, []models.Employee{
		{ID: 1, FirstName: "Anna", LastName: "Bakker", Active: true},
		{ID: 0, FirstName: "Ghost", LastName: "Row"}, // invalid id
	})
	if err != nil {
		t.Fatalf("ReplaceEmployees() error = %v", err)
	}
	if persisted != 1 || skipped != 1 {
		t.Errorf("ReplaceEmployees() = (%d, %d), want (1, 1)", persisted, skipped)
	}
}

func TestReplaceDuplicateIDIsolatedNotFatal(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Two rows with the same primary key: the conflicting row is
	// dropped, the rest of the batch survives.
	persisted, skipped, err := db.ReplaceEmployees(ctx, []models.Employee{
		{ID: 1, FirstName: "Anna", LastName: "Bakker", Active: true},
		{ID: 1, FirstName: "Anna", LastName: "Duplicate", Active: true},
		{ID: 2, FirstName: "Bram", LastName: "de Vries", Active: true},
	})
	if err != nil {
		t.Fatalf("ReplaceEmployees() error = %v", err)
	}
	if persisted != 2 || skipped != 1 {
		t.Errorf("ReplaceEmployees() = (%d, %d), want (2, 1)", persisted, skipped)
	}
}

func TestReplaceNothingPersistedRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, _, err := db.ReplaceEmployees(ctx, testEmployees()); err != nil {
		t.Fatalf("seed ReplaceEmployees() error = %v", err)
	}

	// Every record invalid: the replace must fail and the previous
	// mirror contents must survive the rollback.
	_, _, err := db.ReplaceEmployees(ctx, []models.Employee{
		{ID: 0}, {ID: -1},
	})
	if err == nil {
		t.Fatal("ReplaceEmployees() error = nil for all-invalid input, want error")
	}

	all, listErr := db.ListEmployees(ctx, false)
	if listErr != nil {
		t.Fatalf("ListEmployees() error = %v", listErr)
	}
	if len(all) != 3 {
		t.Errorf("ListEmployees() len = %d after rollback, want 3", len(all))
	}
}

func TestReplaceEmptyInputClearsScope(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, _, err := db.ReplaceProjects(ctx, []models.Project{{ID: 1, Name: "Site"}}); err != nil {
		t.Fatalf("seed ReplaceProjects() error = %v", err)
	}

	// Zero upstream rows is a legal outcome, not a rollback case.
	persisted, skipped, err := db.ReplaceProjects(ctx, nil)
	if err != nil {
		t.Fatalf("ReplaceProjects(nil) error = %v", err)
	}
	if persisted != 0 || skipped != 0 {
		t.Errorf("ReplaceProjects(nil) = (%d, %d), want (0, 0)", persisted, skipped)
	}

	count, err := db.CountRows(ctx, models.EntityProjects)
	if err != nil {
		t.Fatalf("CountRows() error = %v", err)
	}
	if count != 0 {
		t.Errorf("projects count = %d after empty replace, want 0", count)
	}
}

func TestReplaceHoursRangeScoped(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	janRange := models.DateRange{Start: models.NewDate(2026, 1, 1), End: models.NewDate(2026, 1, 31)}
	febRange := models.DateRange{Start: models.NewDate(2026, 2, 1), End: models.NewDate(2026, 2, 28)}

	_, _, err := db.ReplaceHours(ctx, []models.HourEntry{
		{ID: 10, EmployeeID: 1, Date: models.NewDate(2026, 1, 5), Amount: 8},
		{ID: 11, EmployeeID: 1, Date: models.NewDate(2026, 1, 6), Amount: 6},
	}, janRange)
	if err != nil {
		t.Fatalf("ReplaceHours(jan) error = %v", err)
	}

	// Resyncing February must leave the January rows untouched.
	_, _, err = db.ReplaceHours(ctx, []models.HourEntry{
		{ID: 20, EmployeeID: 1, Date: models.NewDate(2026, 2, 2), Amount: 8},
	}, febRange)
	if err != nil {
		t.Fatalf("ReplaceHours(feb) error = %v", err)
	}

	count, err := db.CountRows(ctx, models.EntityHours)
	if err != nil {
		t.Fatalf("CountRows() error = %v", err)
	}
	if count != 3 {
		t.Errorf("hours count = %d, want 3 (january preserved)", count)
	}

	// Resyncing January replaces only January.
	_, _, err = db.ReplaceHours(ctx, []models.HourEntry{
		{ID: 12, EmployeeID: 1, Date: models.NewDate(2026, 1, 7), Amount: 4},
	}, janRange)
	if err != nil {
		t.Fatalf("ReplaceHours(jan resync) error = %v", err)
	}

	count, err = db.CountRows(ctx, models.EntityHours)
	if err != nil {
		t.Fatalf("CountRows() error = %v", err)
	}
	if count != 2 {
		t.Errorf("hours count = %d after january resync, want 2", count)
	}
}

func TestHoursSummary(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, _, err := db.ReplaceEmployees(ctx, testEmployees()); err != nil {
		t.Fatalf("ReplaceEmployees() error = %v", err)
	}
	if _, _, err := db.ReplaceContracts(ctx, []models.Contract{
		{ID: 100, EmployeeID: 1, StartDate: models.NewDate(2025, 1, 1), HoursPerWeek: floatPtr(36)},
	}); err != nil {
		t.Fatalf("ReplaceContracts() error = %v", err)
	}

	dateRange := models.DateRange{Start: models.NewDate(2026, 3, 1), End: models.NewDate(2026, 3, 31)}
	_, _, err := db.ReplaceHours(ctx, []models.HourEntry{
		{ID: 1, EmployeeID: 1, Date: models.NewDate(2026, 3, 2), Amount: 8},
		{ID: 2, EmployeeID: 1, Date: models.NewDate(2026, 3, 3), Amount: 7.5},
		{ID: 3, EmployeeID: 2, Date: models.NewDate(2026, 3, 2), Amount: 8},
	}, dateRange)
	if err != nil {
		t.Fatalf("ReplaceHours() error = %v", err)
	}
	_, _, err = db.ReplaceAbsences(ctx, []models.AbsenceRequest{
		{ID: 1, EmployeeID: 1, Date: models.NewDate(2026, 3, 4), Amount: 8, Type: strPtr("vacation")},
	}, dateRange)
	if err != nil {
		t.Fatalf("ReplaceAbsences() error = %v", err)
	}

	summary, err := db.HoursSummary(ctx, dateRange)
	if err != nil {
		t.Fatalf("HoursSummary() error = %v", err)
	}

	// Active employees only: Anna (1) and Bram (2); Cas is inactive.
	if len(summary) != 2 {
		t.Fatalf("HoursSummary() len = %d, want 2", len(summary))
	}

	anna := summary[0]
	if anna.EmployeeID != 1 {
		t.Fatalf("first summary row employee = %d, want 1", anna.EmployeeID)
	}
	if anna.WrittenHours != 15.5 {
		t.Errorf("WrittenHours = %v, want 15.5", anna.WrittenHours)
	}
	if anna.AbsenceHours != 8 {
		t.Errorf("AbsenceHours = %v, want 8", anna.AbsenceHours)
	}
	if anna.HoursPerWeek == nil || *anna.HoursPerWeek != 36 {
		t.Errorf("HoursPerWeek = %v, want 36", anna.HoursPerWeek)
	}

	bram := summary[1]
	if bram.WrittenHours != 8 || bram.AbsenceHours != 0 {
		t.Errorf("bram summary = %v/%v, want 8/0", bram.WrittenHours, bram.AbsenceHours)
	}
	if bram.HoursPerWeek != nil {
		t.Errorf("bram HoursPerWeek = %v, want nil (no contract)", *bram.HoursPerWeek)
	}
}

func TestSyncStatusRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	status, err := db.GetSyncStatus(ctx, models.EntityEmployees)
	if err != nil {
		t.Fatalf("GetSyncStatus() error = %v", err)
	}
	if status != nil {
		t.Fatalf("GetSyncStatus() = %+v before any sync, want nil", status)
	}

	first := &models.SyncStatus{
		EntityType:       models.EntityEmployees,
		RunID:            "run-1",
		LastRunAt:        time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC),
		Outcome:          models.SyncError,
		Message:          strPtr("upstream unavailable"),
		DurationMs:       1200,
		RecordsFetched:   0,
		RecordsPersisted: 0,
	}
	if err := db.UpsertSyncStatus(ctx, first); err != nil {
		t.Fatalf("UpsertSyncStatus() error = %v", err)
	}

	// The next run overwrites; only the latest survives.
	second := &models.SyncStatus{
		EntityType:       models.EntityEmployees,
		RunID:            "run-2",
		LastRunAt:        time.Date(2026, 3, 1, 7, 0, 0, 0, time.UTC),
		Outcome:          models.SyncSuccess,
		DurationMs:       900,
		RecordsFetched:   25,
		RecordsPersisted: 25,
	}
	if err := db.UpsertSyncStatus(ctx, second); err != nil {
		t.Fatalf("UpsertSyncStatus() overwrite error = %v", err)
	}

	got, err := db.GetSyncStatus(ctx, models.EntityEmployees)
	if err != nil {
		t.Fatalf("GetSyncStatus() error = %v", err)
	}
	if got == nil {
		t.Fatal("GetSyncStatus() = nil after upsert")
	}
	if got.RunID != "run-2" || got.Outcome != models.SyncSuccess {
		t.Errorf("GetSyncStatus() = %+v, want run-2/success", got)
	}
	if got.Message != nil {
		t.Errorf("Message = %v carried over from overwritten run, want nil", *got.Message)
	}
	if got.RecordsPersisted != 25 {
		t.Errorf("RecordsPersisted = %d, want 25", got.RecordsPersisted)
	}

	statuses, err := db.ListSyncStatuses(ctx)
	if err != nil {
		t.Fatalf("ListSyncStatuses() error = %v", err)
	}
	if len(statuses) != 1 {
		t.Errorf("ListSyncStatuses() len = %d, want 1", len(statuses))
	}
}
