// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package sync

import (
	"github.com/flipmoo/begripp-sub003/internal/models"
	"github.com/flipmoo/begripp-sub003/internal/models/gripp"
)

// Upstream list methods per entity type.
var entityMethods = map[models.EntityType]string{
	models.EntityEmployees: "employee.get",
	models.EntityContracts: "contract.get",
	models.EntityProjects:  "project.get",
	models.EntityAbsences:  "absencerequest.get",
	models.EntityHours:     "hour.get",
	models.EntityInvoices:  "invoice.get",
}

// collectionRequest builds page requests for a full-collection fetch
// (employees, contracts, projects, invoices).
func collectionRequest(entityType models.EntityType) listRequestFunc {
	method := entityMethods[entityType]
	return func(firstResult, maxResults int) gripp.Request {
		return gripp.NewListRequest(method, nil, gripp.Paging{
			FirstResult: firstResult,
			MaxResults:  maxResults,
		}, 0)
	}
}

// windowedEmployeeRequest builds page requests for one employee's rows
// inside one window. The window is half-open, expressed as a >= / <
// filter pair so adjacent windows never double-fetch a boundary day.
func windowedEmployeeRequest(entityType models.EntityType, employeeID int, w window) listRequestFunc {
	method := entityMethods[entityType]
	return func(firstResult, maxResults int) gripp.Request {
		filters := []gripp.FilterExpr{
			{Field: "employee", Operator: gripp.OpEquals, Value: employeeID},
			{Field: "date", Operator: gripp.OpGreaterEquals, Value: w.Start.String()},
			{Field: "date", Operator: gripp.OpLess, Value: w.End.String()},
		}
		return gripp.NewListRequest(method, filters, gripp.Paging{
			FirstResult: firstResult,
			MaxResults:  maxResults,
		}, 0)
	}
}

// dedupeByID drops rows whose id was already seen, keeping the first
// occurrence. Windows share boundaries and upstream edits can shift
// rows between pages mid-pagination, so duplicates are expected.
func dedupeByID[T any](records []T, id func(*T) int) (unique []T, duplicates int) {
	seen := make(map[int]struct{}, len(records))
	unique = make([]T, 0, len(records))
	for i := range records {
		key := id(&records[i])
		if _, ok := seen[key]; ok {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, records[i])
	}
	return unique, duplicates
}
