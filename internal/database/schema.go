// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package database

import (
	"context"
	"fmt"
)

// schemaStatements are executed in order at startup. DuckDB DDL is
// idempotent via IF NOT EXISTS, so restarts are safe.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY,
		firstname VARCHAR NOT NULL,
		lastname VARCHAR NOT NULL,
		email VARCHAR,
		number INTEGER,
		function VARCHAR,
		active BOOLEAN NOT NULL DEFAULT true,
		synced_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS contracts (
		id INTEGER PRIMARY KEY,
		employee_id INTEGER NOT NULL,
		startdate DATE NOT NULL,
		enddate DATE,
		hours_per_week DOUBLE,
		internal BOOLEAN NOT NULL DEFAULT false,
		synced_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY,
		number INTEGER,
		name VARCHAR NOT NULL,
		company_name VARCHAR,
		archived BOOLEAN NOT NULL DEFAULT false,
		startdate DATE,
		deadline DATE,
		synced_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS absences (
		id INTEGER PRIMARY KEY,
		employee_id INTEGER NOT NULL,
		date DATE NOT NULL,
		amount DOUBLE NOT NULL,
		type VARCHAR,
		status VARCHAR,
		description VARCHAR,
		synced_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS hours (
		id INTEGER PRIMARY KEY,
		employee_id INTEGER NOT NULL,
		project_id INTEGER,
		date DATE NOT NULL,
		amount DOUBLE NOT NULL,
		status VARCHAR,
		description VARCHAR,
		synced_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS invoices (
		id INTEGER PRIMARY KEY,
		number INTEGER,
		date DATE,
		company_name VARCHAR,
		total_excl_vat DOUBLE,
		total_incl_vat DOUBLE,
		status VARCHAR,
		synced_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS sync_status (
		entity_type VARCHAR PRIMARY KEY,
		run_id VARCHAR NOT NULL,
		last_run_at TIMESTAMP NOT NULL,
		outcome VARCHAR NOT NULL,
		message VARCHAR,
		duration_ms BIGINT NOT NULL,
		records_fetched INTEGER NOT NULL,
		records_persisted INTEGER NOT NULL,
		records_skipped INTEGER NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_hours_employee_date ON hours (employee_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_hours_date ON hours (date)`,
	`CREATE INDEX IF NOT EXISTS idx_absences_employee_date ON absences (employee_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_employee ON contracts (employee_id)`,
}

func (db *DB) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}
