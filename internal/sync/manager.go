// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/flipmoo/begripp-sub003/internal/config"
	"github.com/flipmoo/begripp-sub003/internal/logging"
	"github.com/flipmoo/begripp-sub003/internal/metrics"
	"github.com/flipmoo/begripp-sub003/internal/models"
)

// ErrSyncInProgress is returned when a sync for the same entity type is
// already running. Different entity types sync concurrently; the same
// type never does, because both runs would rewrite the same scope.
var ErrSyncInProgress = errors.New("sync already in progress for this entity type")

// Store is the database surface the engine writes to.
type Store interface {
	ReplaceEmployees(ctx context.Context, employees []models.Employee) (persisted, skipped int, err error)
	ReplaceContracts(ctx context.Context, contracts []models.Contract) (persisted, skipped int, err error)
	ReplaceProjects(ctx context.Context, projects []models.Project) (persisted, skipped int, err error)
	ReplaceInvoices(ctx context.Context, invoices []models.Invoice) (persisted, skipped int, err error)
	ReplaceHours(ctx context.Context, entries []models.HourEntry, dateRange models.DateRange) (persisted, skipped int, err error)
	ReplaceAbsences(ctx context.Context, absences []models.AbsenceRequest, dateRange models.DateRange) (persisted, skipped int, err error)
	UpsertSyncStatus(ctx context.Context, status *models.SyncStatus) error
	ListEmployees(ctx context.Context, activeOnly bool) ([]models.Employee, error)
}

// Invalidator is the cache surface the engine touches after commits.
type Invalidator interface {
	DeleteByPrefix(prefix string) int
}

// Manager orchestrates entity syncs: fetch, dedupe, persist, invalidate
// cache, record status. It also owns the periodic full-sync loop.
type Manager struct {
	cfg       *config.SyncConfig
	store     Store
	cache     Invalidator
	paginator *paginator
	retry     *RetryPolicy

	// locks serialize syncs per entity type.
	locks map[models.EntityType]*sync.Mutex

	// sleep paces windows and fan-out groups, injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	running  bool
	lastSync time.Time

	wg          sync.WaitGroup
	stopChan    chan struct{}
	triggerChan chan struct{}
}

// NewManager wires the engine together. client should already carry
// the circuit breaker when one is wanted.
func NewManager(cfg *config.SyncConfig, client Caller, store Store, cacheLayer Invalidator) *Manager {
	retry := NewRetryPolicy(cfg.RetryAttempts, cfg.RetryBaseDelay)

	locks := make(map[models.EntityType]*sync.Mutex, len(models.SyncOrder))
	for _, t := range models.SyncOrder {
		locks[t] = &sync.Mutex{}
	}

	return &Manager{
		cfg:   cfg,
		store: store,
		cache: cacheLayer,
		retry: retry,
		paginator: &paginator{
			client:    client,
			retry:     retry,
			pageSize:  cfg.PageSize,
			pageDelay: cfg.PageDelay,
		},
		locks:       locks,
		sleep:       cancellableSleep,
		stopChan:    make(chan struct{}),
		triggerChan: make(chan struct{}, 1),
	}
}

func cancellableSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SyncEntity syncs one entity type over the date range (the range only
// matters for the date-partitioned types). The returned status is also
// persisted, win or lose.
func (m *Manager) SyncEntity(ctx context.Context, entityType models.EntityType, dateRange models.DateRange) (*models.SyncStatus, error) {
	if !entityType.Valid() {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}

	lock := m.locks[entityType]
	if !lock.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer lock.Unlock()

	start := time.Now()
	status := &models.SyncStatus{
		EntityType: entityType,
		RunID:      uuid.New().String(),
		LastRunAt:  start,
	}

	logging.Info().
		Str("entity", string(entityType)).
		Str("run_id", status.RunID).
		Str("from", dateRange.Start.String()).
		Str("to", dateRange.End.String()).
		Msg("Sync started")

	fetched, persisted, skipped, err := m.syncOne(ctx, entityType, dateRange)

	status.DurationMs = time.Since(start).Milliseconds()
	status.RecordsFetched = fetched
	status.RecordsPersisted = persisted
	status.RecordsSkipped = skipped

	if err != nil {
		status.Outcome = models.SyncError
		msg := err.Error()
		status.Message = &msg
		metrics.RecordSyncRun(string(entityType), time.Since(start), "error")
		logging.Error().
			Err(err).
			Str("entity", string(entityType)).
			Str("run_id", status.RunID).
			Msg("Sync failed")
	} else {
		status.Outcome = models.SyncSuccess
		metrics.RecordSyncRun(string(entityType), time.Since(start), "success")

		// Invalidate after commit so readers never see stale cached
		// views of freshly replaced data.
		invalidated := m.cache.DeleteByPrefix(entityType.CachePrefix())

		logging.Info().
			Str("entity", string(entityType)).
			Str("run_id", status.RunID).
			Int("fetched", fetched).
			Int("persisted", persisted).
			Int("skipped", skipped).
			Int("cache_invalidated", invalidated).
			Dur("duration", time.Since(start)).
			Msg("Sync completed")
	}

	if statusErr := m.store.UpsertSyncStatus(ctx, status); statusErr != nil {
		logging.Error().
			Err(statusErr).
			Str("entity", string(entityType)).
			Msg("Failed to record sync status")
	}

	m.mu.Lock()
	m.lastSync = time.Now()
	m.mu.Unlock()

	return status, err
}

// syncOne runs the fetch-and-persist path for one entity type.
func (m *Manager) syncOne(ctx context.Context, entityType models.EntityType, dateRange models.DateRange) (fetched, persisted, skipped int, err error) {
	switch entityType {
	case models.EntityEmployees:
		return syncCollection(ctx, m, entityType, func(e *models.Employee) int { return e.ID }, m.store.ReplaceEmployees)
	case models.EntityContracts:
		return syncCollection(ctx, m, entityType, func(c *models.Contract) int { return c.ID }, m.store.ReplaceContracts)
	case models.EntityProjects:
		return syncCollection(ctx, m, entityType, func(p *models.Project) int { return p.ID }, m.store.ReplaceProjects)
	case models.EntityInvoices:
		return syncCollection(ctx, m, entityType, func(i *models.Invoice) int { return i.ID }, m.store.ReplaceInvoices)
	case models.EntityHours:
		return syncWindowed(ctx, m, entityType, dateRange,
			func(h *models.HourEntry) int { return h.ID },
			func(ctx context.Context, rows []models.HourEntry) (int, int, error) {
				return m.store.ReplaceHours(ctx, rows, dateRange)
			})
	case models.EntityAbsences:
		return syncWindowed(ctx, m, entityType, dateRange,
			func(a *models.AbsenceRequest) int { return a.ID },
			func(ctx context.Context, rows []models.AbsenceRequest) (int, int, error) {
				return m.store.ReplaceAbsences(ctx, rows, dateRange)
			})
	default:
		return 0, 0, 0, fmt.Errorf("unknown entity type %q", entityType)
	}
}

// syncCollection fetches a full collection and replaces its table.
func syncCollection[T any](
	ctx context.Context,
	m *Manager,
	entityType models.EntityType,
	id func(*T) int,
	replace func(context.Context, []T) (int, int, error),
) (fetched, persisted, skipped int, err error) {
	label := string(entityType)

	rows, err := m.paginator.fetchAll(ctx, label, collectionRequest(entityType))
	if err != nil {
		return 0, 0, 0, err
	}
	fetched = len(rows)

	records, dropped := decodeRows[T](rows, label)
	unique, duplicates := dedupeByID(records, id)

	// The upstream returned records but none survived decoding. Calling
	// replace with an empty slice would commit the delete and wipe the
	// table, so fail before touching it.
	if fetched > 0 && len(unique) == 0 {
		return fetched, 0, dropped, fmt.Errorf("all %d fetched %s rows were dropped before persisting", fetched, label)
	}

	persisted, replaceSkipped, err := replace(ctx, unique)
	skipped = dropped + replaceSkipped
	if err != nil {
		return fetched, 0, skipped, err
	}
	metrics.SyncRecords.WithLabelValues(label, "persisted").Add(float64(persisted))
	metrics.SyncRecords.WithLabelValues(label, "skipped").Add(float64(skipped))
	metrics.SyncRecords.WithLabelValues(label, "duplicate").Add(float64(duplicates))
	return fetched, persisted, skipped, nil
}

// syncWindowed fetches a date-partitioned entity window by window with
// per-employee fan-out, then replaces the range scope in one
// transaction. A window whose fetches exhaust their retries is
// abandoned and the sync continues with the next window; the range
// replace then persists everything the surviving windows produced.
func syncWindowed[T any](
	ctx context.Context,
	m *Manager,
	entityType models.EntityType,
	dateRange models.DateRange,
	id func(*T) int,
	replace func(context.Context, []T) (int, int, error),
) (fetched, persisted, skipped int, err error) {
	label := string(entityType)

	employees, err := m.store.ListEmployees(ctx, true)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("list employees for %s fan-out: %w", label, err)
	}
	if len(employees) == 0 {
		return 0, 0, 0, fmt.Errorf("no active employees to fan out %s sync over; sync employees first", label)
	}
	employeeIDs := make([]int, len(employees))
	for i := range employees {
		employeeIDs[i] = employees[i].ID
	}

	windows := splitWindows(dateRange, m.cfg.WindowDays)

	var (
		records   []T
		dropped   int
		abandoned int
	)
	for i, w := range windows {
		if i > 0 {
			if sleepErr := m.sleep(ctx, m.cfg.WindowDelay); sleepErr != nil {
				return fetched, 0, skipped, sleepErr
			}
		}

		rows, windowErr := m.fetchWindow(ctx, entityType, employeeIDs, w)
		if windowErr != nil {
			if ctx.Err() != nil {
				return fetched, 0, skipped, ctx.Err()
			}
			abandoned++
			metrics.SyncWindowsAbandoned.WithLabelValues(label).Inc()
			logging.Warn().
				Err(windowErr).
				Str("entity", label).
				Str("window_start", w.Start.String()).
				Str("window_end", w.End.String()).
				Msg("Abandoning window after exhausting retries")
			continue
		}

		fetched += len(rows)
		decoded, droppedHere := decodeRows[T](rows, label)
		dropped += droppedHere
		records = append(records, decoded...)
	}

	if abandoned == len(windows) && len(windows) > 0 {
		return fetched, 0, dropped, fmt.Errorf("every window of the %s sync was abandoned", label)
	}

	unique, duplicates := dedupeByID(records, id)

	// Same wipe protection as syncCollection: fetched records that all
	// died in decoding must not turn into an empty range replace.
	if fetched > 0 && len(unique) == 0 {
		return fetched, 0, dropped, fmt.Errorf("all %d fetched %s rows were dropped before persisting", fetched, label)
	}

	persisted, replaceSkipped, err := replace(ctx, unique)
	skipped = dropped + replaceSkipped
	if err != nil {
		return fetched, 0, skipped, err
	}
	metrics.SyncRecords.WithLabelValues(label, "persisted").Add(float64(persisted))
	metrics.SyncRecords.WithLabelValues(label, "skipped").Add(float64(skipped))
	metrics.SyncRecords.WithLabelValues(label, "duplicate").Add(float64(duplicates))
	return fetched, persisted, skipped, nil
}

// fetchWindow fans one window out over the employees in bounded groups.
// Any employee fetch failing (after its own retries) fails the window.
func (m *Manager) fetchWindow(ctx context.Context, entityType models.EntityType, employeeIDs []int, w window) ([]json.RawMessage, error) {
	label := string(entityType)
	groupSize := m.cfg.FanOut
	if groupSize <= 0 {
		groupSize = 1
	}

	var (
		mu       sync.Mutex
		rows     []json.RawMessage
		firstErr error
	)

	for start := 0; start < len(employeeIDs); start += groupSize {
		if start > 0 {
			if err := m.sleep(ctx, m.cfg.FanOutGroupDelay); err != nil {
				return nil, err
			}
		}

		end := start + groupSize
		if end > len(employeeIDs) {
			end = len(employeeIDs)
		}

		var wg sync.WaitGroup
		for _, employeeID := range employeeIDs[start:end] {
			wg.Add(1)
			go func(employeeID int) {
				defer wg.Done()
				fetchLabel := fmt.Sprintf("%s/employee=%d", label, employeeID)
				employeeRows, err := m.paginator.fetchAll(ctx, fetchLabel,
					windowedEmployeeRequest(entityType, employeeID, w))

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if firstErr == nil {
						firstErr = err
					}
					return
				}
				rows = append(rows, employeeRows...)
			}(employeeID)
		}
		wg.Wait()

		if firstErr != nil {
			return nil, firstErr
		}
	}

	return rows, nil
}

// SyncAll syncs every entity type in dependency order. Individual
// failures do not stop the run; overall success requires the critical
// foundational types to have committed.
func (m *Manager) SyncAll(ctx context.Context, dateRange models.DateRange) *models.SyncAllResult {
	start := time.Now()
	result := &models.SyncAllResult{
		StartedAt: start,
		Results:   make(map[models.EntityType]bool, len(models.SyncOrder)),
	}

	for _, entityType := range models.SyncOrder {
		_, err := m.SyncEntity(ctx, entityType, dateRange)
		result.Results[entityType] = err == nil
		if ctx.Err() != nil {
			break
		}
	}

	result.Success = true
	for _, critical := range models.CriticalTypes {
		if !result.Results[critical] {
			result.Success = false
		}
	}
	result.Duration = time.Since(start)

	logging.Info().
		Bool("success", result.Success).
		Dur("duration", result.Duration).
		Msg("Full sync finished")
	return result
}

// LastSyncTime returns when the most recent entity sync finished.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync
}
