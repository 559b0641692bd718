// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

// Package gripp defines the wire types of the Gripp public API. The
// request/response shape is dictated by the upstream service and is
// compatibility-critical: do not change field names or nesting.
package gripp

import "github.com/goccy/go-json"

// Filter operators understood by the Gripp API.
const (
	OpEquals        = "equals"
	OpNotEquals     = "notequals"
	OpBetween       = "between"
	OpGreaterEquals = "greaterequals"
	OpLessEquals    = "lessequals"
	OpLess          = "less"
	OpGreater       = "greater"
	OpIn            = "in"
	OpIsNull        = "isnull"
)

// FilterExpr is one filter condition on a list call. Value2 is only set
// for two-operand operators such as "between".
type FilterExpr struct {
	Field    string      `json:"field"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
	Value2   interface{} `json:"value2,omitempty"`
}

// Paging selects one page of a list call. FirstResult is a zero-based
// offset; MaxResults is the page size.
type Paging struct {
	FirstResult int `json:"firstresult"`
	MaxResults  int `json:"maxresults"`
}

// Ordering sorts list results.
type Ordering struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Options is the second positional parameter of a list call.
type Options struct {
	Paging  Paging     `json:"paging"`
	OrderBy []Ordering `json:"orderings,omitempty"`
}

// Request is one logical API call: method name, positional params
// (filters first, options second) and a caller-chosen id echoed back in
// the response.
type Request struct {
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
	ID     int           `json:"id"`
}

// NewListRequest builds a list call for the given entity method
// ("employee.get", "hour.get", ...).
func NewListRequest(method string, filters []FilterExpr, paging Paging, id int) Request {
	if filters == nil {
		filters = []FilterExpr{}
	}
	return Request{
		Method: method,
		Params: []interface{}{filters, Options{Paging: paging}},
		ID:     id,
	}
}

// Result is the payload of a successful list call. Rows stay raw here;
// the sync layer decodes them into typed records and validates them at
// the boundary.
type Result struct {
	Rows  []json.RawMessage `json:"rows"`
	Count int               `json:"count"`
	Start int               `json:"start"`

	// MoreItemsInCollection and Count have been observed to disagree;
	// the paginator treats either as evidence of more data.
	MoreItemsInCollection *bool `json:"more_items_in_collection,omitempty"`
}

// Response is the envelope of one API call. A missing Result with no
// Error indicates a malformed response and is treated as retryable.
type Response struct {
	ID     int     `json:"id"`
	Result *Result `json:"result"`
	Error  *string `json:"error,omitempty"`
}

// More reports whether the upstream flagged additional items.
func (r *Result) More() bool {
	return r.MoreItemsInCollection != nil && *r.MoreItemsInCollection
}
