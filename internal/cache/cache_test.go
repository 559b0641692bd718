// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package cache

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	c, err := New(Config{DefaultTTL: time.Minute, InMemory: true})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return c
}

// fakeClock drives the cache's injected clock for TTL tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestSetGetFastTier(t *testing.T) {
	c := newTestCache(t)

	c.Set("employees:42", "alice", time.Minute, TierFast)

	got, ok := c.Get("employees:42")
	if !ok {
		t.Fatal("Get() miss, want hit")
	}
	if got != "alice" {
		t.Errorf("Get() = %v, want alice", got)
	}
}

func TestGetMiss(t *testing.T) {
	c := newTestCache(t)

	if _, ok := c.Get("employees:missing"); ok {
		t.Error("Get() hit for absent key, want miss")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clock.Now

	c.Set("hours:2026-03", 40.5, 10*time.Second, TierDurable)

	if _, ok := c.Get("hours:2026-03"); !ok {
		t.Fatal("Get() miss before expiry, want hit")
	}

	clock.Advance(9 * time.Second)
	if _, ok := c.Get("hours:2026-03"); !ok {
		t.Error("Get() miss one second before expiry, want hit")
	}

	clock.Advance(time.Second)
	if _, ok := c.Get("hours:2026-03"); ok {
		t.Error("Get() hit at expiry instant, want miss")
	}

	// Expired entries must be gone from both tiers, not just masked.
	stats := c.Stats()
	if stats.FastKeys != 0 {
		t.Errorf("FastKeys = %d after expiry, want 0", stats.FastKeys)
	}
	if stats.DurableKeys != 0 {
		t.Errorf("DurableKeys = %d after expiry, want 0", stats.DurableKeys)
	}
}

func TestDefaultTTLApplied(t *testing.T) {
	c := newTestCache(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c.now = clock.Now

	c.Set("contracts:7", "v", 0, TierFast)

	clock.Advance(59 * time.Second)
	if _, ok := c.Get("contracts:7"); !ok {
		t.Error("Get() miss inside default TTL, want hit")
	}

	clock.Advance(2 * time.Second)
	if _, ok := c.Get("contracts:7"); ok {
		t.Error("Get() hit past default TTL, want miss")
	}
}

func TestDurableTierSurvivesFastEviction(t *testing.T) {
	c := newTestCache(t)

	type summary struct {
		EmployeeID int     `json:"employee_id"`
		Total      float64 `json:"total"`
	}
	c.Set("hours:summary:9", summary{EmployeeID: 9, Total: 37.5}, time.Minute, TierDurable)

	// Simulate a restart of the fast tier.
	c.mu.Lock()
	c.fast = make(map[string]Entry)
	c.mu.Unlock()

	got, ok := GetAs[summary](c, "hours:summary:9")
	if !ok {
		t.Fatal("GetAs() miss after fast tier reset, want durable hit")
	}
	if got.EmployeeID != 9 || got.Total != 37.5 {
		t.Errorf("GetAs() = %+v, want {9 37.5}", got)
	}

	// The durable hit must have been mirrored back into the fast tier.
	if stats := c.Stats(); stats.FastKeys != 1 {
		t.Errorf("FastKeys = %d after durable hit, want 1", stats.FastKeys)
	}
}

func TestDelete(t *testing.T) {
	c := newTestCache(t)

	c.Set("projects:1", "p1", time.Minute, TierDurable)

	if !c.Delete("projects:1") {
		t.Error("Delete() = false for present key, want true")
	}
	if c.Delete("projects:1") {
		t.Error("Delete() = true for absent key, want false")
	}
	if _, ok := c.Get("projects:1"); ok {
		t.Error("Get() hit after Delete, want miss")
	}
}

func TestDeleteByPrefix(t *testing.T) {
	c := newTestCache(t)

	c.Set("projects:1", "p1", time.Minute, TierFast)
	c.Set("projects:2", "p2", time.Minute, TierDurable)
	c.Set("employees:1", "e1", time.Minute, TierDurable)

	if got := c.DeleteByPrefix("projects:"); got != 2 {
		t.Errorf("DeleteByPrefix() = %d, want 2", got)
	}

	if _, ok := c.Get("projects:1"); ok {
		t.Error("projects:1 still retrievable after prefix delete")
	}
	if _, ok := c.Get("projects:2"); ok {
		t.Error("projects:2 still retrievable after prefix delete")
	}
	if _, ok := c.Get("employees:1"); !ok {
		t.Error("employees:1 lost by unrelated prefix delete")
	}
}

func TestDeleteByPrefixCountsTierUnionOnce(t *testing.T) {
	c := newTestCache(t)

	// Same key present in both tiers must count once.
	c.Set("invoices:1", "i1", time.Minute, TierDurable)

	if got := c.DeleteByPrefix("invoices:"); got != 1 {
		t.Errorf("DeleteByPrefix() = %d, want 1", got)
	}
}

func TestDeleteByPrefixBulk(t *testing.T) {
	c := newTestCache(t)

	// Enough durable entries that the delete spans several write-batch
	// flushes rather than one transaction.
	for i := 0; i < 500; i++ {
		c.Set(fmt.Sprintf("hours:%04d", i), i, time.Minute, TierDurable)
	}
	c.Set("employees:1", "e1", time.Minute, TierDurable)

	if got := c.DeleteByPrefix("hours:"); got != 500 {
		t.Errorf("DeleteByPrefix() = %d, want 500", got)
	}

	stats := c.Stats()
	if stats.DurableKeys != 1 {
		t.Errorf("durable keys after bulk delete = %d, want 1", stats.DurableKeys)
	}
	if _, ok := c.Get("employees:1"); !ok {
		t.Error("employees:1 lost by unrelated bulk prefix delete")
	}
}

func TestFlush(t *testing.T) {
	c := newTestCache(t)

	c.Set("employees:1", "e1", time.Minute, TierDurable)
	c.Set("projects:1", "p1", time.Minute, TierFast)

	if got := c.Flush(); got != 2 {
		t.Errorf("Flush() = %d, want 2", got)
	}

	stats := c.Stats()
	if stats.FastKeys != 0 || stats.DurableKeys != 0 {
		t.Errorf("keys after flush: fast=%d durable=%d, want 0/0", stats.FastKeys, stats.DurableKeys)
	}
	if stats.Flushes != 1 {
		t.Errorf("Flushes = %d, want 1", stats.Flushes)
	}
	// Counters are monotonic; Flush must not reset them.
	if stats.Sets != 2 {
		t.Errorf("Sets = %d after flush, want 2", stats.Sets)
	}
}

func TestStatsCountersAndRatio(t *testing.T) {
	c := newTestCache(t)

	c.Set("employees:1", "e1", time.Minute, TierFast)
	c.Get("employees:1")
	c.Get("employees:1")
	c.Get("employees:2")
	c.Get("projects:9")

	stats := c.Stats()
	if stats.Hits != 2 {
		t.Errorf("Hits = %d, want 2", stats.Hits)
	}
	if stats.Misses != 2 {
		t.Errorf("Misses = %d, want 2", stats.Misses)
	}
	if stats.HitRatio != 0.5 {
		t.Errorf("HitRatio = %v, want 0.5", stats.HitRatio)
	}

	emp := stats.ByPrefix["employees:"]
	if emp.Hits != 2 || emp.Misses != 1 || emp.Sets != 1 {
		t.Errorf("employees: counters = %+v, want hits=2 misses=1 sets=1", emp)
	}
	proj := stats.ByPrefix["projects:"]
	if proj.Misses != 1 {
		t.Errorf("projects: misses = %d, want 1", proj.Misses)
	}
}

func TestGetOrSet(t *testing.T) {
	c := newTestCache(t)

	calls := 0
	factory := func() (string, error) {
		calls++
		return "computed", nil
	}

	got, err := GetOrSet(c, "employees:list", time.Minute, TierFast, factory)
	if err != nil {
		t.Fatalf("GetOrSet() error = %v", err)
	}
	if got != "computed" {
		t.Errorf("GetOrSet() = %q, want computed", got)
	}

	got, err = GetOrSet(c, "employees:list", time.Minute, TierFast, factory)
	if err != nil {
		t.Fatalf("GetOrSet() second call error = %v", err)
	}
	if got != "computed" || calls != 1 {
		t.Errorf("GetOrSet() = %q with %d factory calls, want computed with 1", got, calls)
	}
}

func TestGetOrSetFactoryError(t *testing.T) {
	c := newTestCache(t)

	wantErr := errors.New("upstream unavailable")
	_, err := GetOrSet(c, "employees:list", time.Minute, TierFast, func() (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("GetOrSet() error = %v, want %v", err, wantErr)
	}

	// A failed factory must not poison the key.
	if _, ok := c.Get("employees:list"); ok {
		t.Error("Get() hit after factory error, want miss")
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := newTestCache(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := "employees:" + string(rune('a'+n%5))
			c.Set(key, n, time.Minute, TierFast)
			c.Get(key)
			c.DeleteByPrefix("projects:")
		}(i)
	}
	wg.Wait()

	if stats := c.Stats(); stats.Sets != 20 {
		t.Errorf("Sets = %d after concurrent writes, want 20", stats.Sets)
	}
}
