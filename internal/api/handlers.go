// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flipmoo/begripp-sub003/internal/cache"
	"github.com/flipmoo/begripp-sub003/internal/database"
	"github.com/flipmoo/begripp-sub003/internal/models"
	syncengine "github.com/flipmoo/begripp-sub003/internal/sync"
)

// Syncer is the sync engine surface the API drives.
type Syncer interface {
	SyncEntity(ctx context.Context, entityType models.EntityType, dateRange models.DateRange) (*models.SyncStatus, error)
	SyncAll(ctx context.Context, dateRange models.DateRange) *models.SyncAllResult
	LookbackRange(now time.Time) models.DateRange
}

// Reader is the mirror-store read surface.
type Reader interface {
	ListEmployees(ctx context.Context, activeOnly bool) ([]models.Employee, error)
	HoursSummary(ctx context.Context, dateRange models.DateRange) ([]database.HoursSummaryRow, error)
	ListSyncStatuses(ctx context.Context) ([]models.SyncStatus, error)
	OldestSyncedAt(ctx context.Context) (time.Time, error)
	Ping(ctx context.Context) error
}

// Handlers holds the API dependencies.
type Handlers struct {
	syncer   Syncer
	store    Reader
	cache    *cache.Cache
	cacheTTL time.Duration
}

// NewHandlers wires the handlers.
func NewHandlers(syncer Syncer, store Reader, cacheLayer *cache.Cache, cacheTTL time.Duration) *Handlers {
	return &Handlers{syncer: syncer, store: store, cache: cacheLayer, cacheTTL: cacheTTL}
}

// handleSyncAll runs a full sync over the requested (or default) range.
func (h *Handlers) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	dateRange, err := parseDateRange(r, h.syncer.LookbackRange(time.Now()))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_range", err.Error(), nil)
		return
	}

	result := h.syncer.SyncAll(r.Context(), dateRange)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	respondData(w, status, result, false)
}

// handleSyncEntity runs a single entity-type sync.
func (h *Handlers) handleSyncEntity(w http.ResponseWriter, r *http.Request) {
	entityType := models.EntityType(chi.URLParam(r, "entity"))
	if !entityType.Valid() {
		respondError(w, http.StatusNotFound, "unknown_entity",
			fmt.Sprintf("unknown entity type %q", entityType), nil)
		return
	}

	dateRange, err := parseDateRange(r, h.syncer.LookbackRange(time.Now()))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_range", err.Error(), nil)
		return
	}

	status, err := h.syncer.SyncEntity(r.Context(), entityType, dateRange)
	if errors.Is(err, syncengine.ErrSyncInProgress) {
		respondError(w, http.StatusConflict, "sync_in_progress",
			"a sync for this entity type is already running", nil)
		return
	}
	if err != nil {
		// The status still carries the run's bookkeeping.
		respondJSON(w, http.StatusBadGateway, &models.APIResponse{
			Status:   "error",
			Data:     status,
			Metadata: models.Metadata{Timestamp: time.Now()},
			Error:    &models.APIError{Code: "sync_failed", Message: err.Error()},
		})
		return
	}
	respondData(w, http.StatusOK, status, false)
}

// handleSyncStatus lists the latest run per entity type.
func (h *Handlers) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.store.ListSyncStatuses(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query_failed", "failed to load sync status", err)
		return
	}
	respondData(w, http.StatusOK, statuses, false)
}

// handleCacheClear flushes the cache, or just one prefix when given.
func (h *Handlers) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")

	var removed int
	if prefix != "" {
		removed = h.cache.DeleteByPrefix(prefix)
	} else {
		removed = h.cache.Flush()
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
		"prefix":  prefix,
	}, false)
}

// handleCacheStats reports cache counters and derived figures.
func (h *Handlers) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, h.cache.Stats(), false)
}

// handleEmployees serves the employee list through the cache.
func (h *Handlers) handleEmployees(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	key := "employees:list"
	if activeOnly {
		key = "employees:list:active"
	}

	if cached, ok := cache.GetAs[[]models.Employee](h.cache, key); ok {
		respondData(w, http.StatusOK, cached, true)
		return
	}

	employees, err := h.store.ListEmployees(r.Context(), activeOnly)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query_failed", "failed to load employees", err)
		return
	}
	h.cache.Set(key, employees, h.cacheTTL, cache.TierDurable)
	respondData(w, http.StatusOK, employees, false)
}

// handleHoursSummary serves the per-employee hours aggregation for a
// date range, cached per range.
func (h *Handlers) handleHoursSummary(w http.ResponseWriter, r *http.Request) {
	dateRange, err := parseDateRange(r, h.syncer.LookbackRange(time.Now()))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_range", err.Error(), nil)
		return
	}

	key := fmt.Sprintf("hours:summary:%s:%s", dateRange.Start, dateRange.End)
	if cached, ok := cache.GetAs[[]database.HoursSummaryRow](h.cache, key); ok {
		respondData(w, http.StatusOK, cached, true)
		return
	}

	summary, err := h.store.HoursSummary(r.Context(), dateRange)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query_failed", "failed to aggregate hours", err)
		return
	}
	h.cache.Set(key, summary, h.cacheTTL, cache.TierDurable)
	respondData(w, http.StatusOK, summary, false)
}

// handleHealth reports liveness plus mirror staleness.
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if err := h.store.Ping(r.Context()); err != nil {
		health["status"] = "degraded"
		health["database"] = err.Error()
		status = http.StatusServiceUnavailable
	} else if oldest, err := h.store.OldestSyncedAt(r.Context()); err == nil && !oldest.IsZero() {
		health["oldest_synced_at"] = oldest
	}

	respondData(w, status, health, false)
}
