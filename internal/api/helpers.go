// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

// Package api serves the dashboard's JSON interface: sync triggers and
// status, cache administration, and cached reads over the DuckDB
// mirror.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/flipmoo/begripp-sub003/internal/logging"
	"github.com/flipmoo/begripp-sub003/internal/models"
)

var errInvertedRange = errors.New("start must not be after end")

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", generateETag(data))
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondData wraps a success payload in the standard envelope.
func respondData(w http.ResponseWriter, status int, data interface{}, cached bool) {
	respondJSON(w, status, &models.APIResponse{
		Status:   "ok",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now(), Cached: cached},
	})
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

// generateETag creates a simple ETag from data using FNV-1a hash.
func generateETag(data []byte) string {
	hash := uint32(2166136261)
	for _, b := range data {
		hash ^= uint32(b)
		hash *= 16777619
	}
	return strconv.FormatUint(uint64(hash), 16)
}

// parseDateRange reads optional start/end query parameters, falling
// back to the given defaults. Both bounds must parse and be ordered.
func parseDateRange(r *http.Request, fallback models.DateRange) (models.DateRange, error) {
	dateRange := fallback

	if startStr := r.URL.Query().Get("start"); startStr != "" {
		start, err := models.ParseDate(startStr)
		if err != nil {
			return models.DateRange{}, err
		}
		dateRange.Start = start
	}
	if endStr := r.URL.Query().Get("end"); endStr != "" {
		end, err := models.ParseDate(endStr)
		if err != nil {
			return models.DateRange{}, err
		}
		dateRange.End = end
	}

	if dateRange.End.Before(dateRange.Start.Time) {
		return models.DateRange{}, errInvertedRange
	}
	return dateRange, nil
}
