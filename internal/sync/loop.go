// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package sync

import (
	"context"
	"time"

	"github.com/flipmoo/begripp-sub003/internal/logging"
	"github.com/flipmoo/begripp-sub003/internal/models"
)

// Start launches the periodic full-sync loop. An initial sync runs
// immediately; after that the loop ticks on the configured interval and
// also wakes on TriggerSync.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop()

	logging.Info().
		Dur("interval", m.cfg.Interval).
		Dur("lookback", m.cfg.Lookback).
		Msg("Periodic sync started")
}

// Stop shuts the loop down and waits for an in-flight sync to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("Periodic sync stopped")
}

// TriggerSync requests an immediate full sync. Non-blocking; a trigger
// while one is already queued is coalesced.
func (m *Manager) TriggerSync() {
	select {
	case m.triggerChan <- struct{}{}:
	default:
	}
}

func (m *Manager) loop() {
	defer m.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-m.stopChan
		cancel()
	}()

	m.runFullSync(ctx)

	// Interval 0 disables the timer; the loop then only wakes on triggers.
	var tick <-chan time.Time
	if m.cfg.Interval > 0 {
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-m.stopChan:
			return
		case <-tick:
			m.runFullSync(ctx)
		case <-m.triggerChan:
			m.runFullSync(ctx)
		}
	}
}

// runFullSync syncs the lookback range ending today.
func (m *Manager) runFullSync(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	m.SyncAll(ctx, m.LookbackRange(time.Now()))
}

// LookbackRange is the default sync range: the configured lookback
// ending at the given day, inclusive.
func (m *Manager) LookbackRange(now time.Time) models.DateRange {
	end := models.NewDate(now.Year(), now.Month(), now.Day())
	start := models.Date{Time: end.AddDate(0, 0, -int(m.cfg.Lookback.Hours()/24))}
	return models.DateRange{Start: start, End: end}
}
