// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

// Package models defines the domain types mirrored from the Gripp API
// and the envelopes shared between the sync pipeline and the HTTP API.
package models

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// EntityType identifies one mirrored Gripp entity collection. It doubles
// as the table name in DuckDB and the cache key prefix invalidated after
// a successful sync.
type EntityType string

const (
	EntityEmployees EntityType = "employees"
	EntityContracts EntityType = "contracts"
	EntityProjects  EntityType = "projects"
	EntityAbsences  EntityType = "absences"
	EntityHours     EntityType = "hours"
	EntityInvoices  EntityType = "invoices"
)

// SyncOrder is the fixed dependency order for a full sync. Hours and
// absence aggregation joins against employees and contracts, so the
// foundational types go first.
var SyncOrder = []EntityType{
	EntityEmployees,
	EntityContracts,
	EntityProjects,
	EntityAbsences,
	EntityHours,
	EntityInvoices,
}

// CriticalTypes must succeed for a full sync to count as successful;
// the remaining types are best-effort.
var CriticalTypes = []EntityType{EntityEmployees, EntityContracts}

// Valid reports whether t names a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityEmployees, EntityContracts, EntityProjects,
		EntityAbsences, EntityHours, EntityInvoices:
		return true
	}
	return false
}

// DatePartitioned reports whether the entity's table carries a date
// column that supports range-scoped deletes during incremental resync.
func (t EntityType) DatePartitioned() bool {
	return t == EntityHours || t == EntityAbsences
}

// Critical reports whether t is one of the foundational types.
func (t EntityType) Critical() bool {
	for _, c := range CriticalTypes {
		if t == c {
			return true
		}
	}
	return false
}

// CachePrefix returns the cache key namespace for this entity type,
// e.g. "hours:".
func (t EntityType) CachePrefix() string {
	return string(t) + ":"
}

// Date is a calendar day as exchanged with Gripp ("2006-01-02").
// The zero value marshals as null.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// NewDate builds a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(dateLayout)
}

// MarshalJSON emits the date as "YYYY-MM-DD" or null when zero.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON accepts "YYYY-MM-DD", a full RFC 3339 timestamp, or the
// Gripp date object form {"date": "YYYY-MM-DD ..."}.
func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Gripp sometimes wraps dates in an object.
		var obj struct {
			Date string `json:"date"`
		}
		if objErr := json.Unmarshal(data, &obj); objErr != nil || obj.Date == "" {
			return err
		}
		s = obj.Date
	}

	// Trim any time component ("2025-01-01 00:00:00.000000").
	if idx := strings.IndexAny(s, " T"); idx > 0 {
		s = s[:idx]
	}

	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return err
	}
	*d = Date{t}
	return nil
}

// Employee mirrors a Gripp employee row.
type Employee struct {
	ID        int     `json:"id" validate:"required,gt=0"`
	FirstName string  `json:"firstname"`
	LastName  string  `json:"lastname"`
	Email     *string `json:"email,omitempty"`
	Number    *int    `json:"number,omitempty"`
	Function  *string `json:"function,omitempty"`
	Active    bool    `json:"active"`
}

// Contract mirrors a Gripp employment contract row.
type Contract struct {
	ID           int      `json:"id" validate:"required,gt=0"`
	EmployeeID   int      `json:"employee_id" validate:"required,gt=0"`
	StartDate    Date     `json:"startdate"`
	EndDate      *Date    `json:"enddate,omitempty"`
	HoursPerWeek *float64 `json:"hours_per_week,omitempty"`
	Internal     bool     `json:"internal"`
}

// Project mirrors a Gripp project row.
type Project struct {
	ID          int     `json:"id" validate:"required,gt=0"`
	Number      *int    `json:"number,omitempty"`
	Name        string  `json:"name"`
	CompanyName *string `json:"company_name,omitempty"`
	Archived    bool    `json:"archived"`
	StartDate   *Date   `json:"startdate,omitempty"`
	Deadline    *Date   `json:"deadline,omitempty"`
}

// AbsenceRequest mirrors one day-line of a Gripp absence request.
type AbsenceRequest struct {
	ID          int     `json:"id" validate:"required,gt=0"`
	EmployeeID  int     `json:"employee_id" validate:"required,gt=0"`
	Date        Date    `json:"date" validate:"required"`
	Amount      float64 `json:"amount"`
	Type        *string `json:"type,omitempty"`
	Status      *string `json:"status,omitempty"`
	Description *string `json:"description,omitempty"`
}

// HourEntry mirrors a Gripp worked-hours row.
type HourEntry struct {
	ID          int     `json:"id" validate:"required,gt=0"`
	EmployeeID  int     `json:"employee_id" validate:"required,gt=0"`
	ProjectID   *int    `json:"project_id,omitempty"`
	Date        Date    `json:"date" validate:"required"`
	Amount      float64 `json:"amount"`
	Status      *string `json:"status,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Invoice mirrors a Gripp invoice row.
type Invoice struct {
	ID           int      `json:"id" validate:"required,gt=0"`
	Number       *int     `json:"number,omitempty"`
	Date         *Date    `json:"date,omitempty"`
	CompanyName  *string  `json:"company_name,omitempty"`
	TotalExclVAT *float64 `json:"total_excl_vat,omitempty"`
	TotalInclVAT *float64 `json:"total_incl_vat,omitempty"`
	Status       *string  `json:"status,omitempty"`
}
