// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package cache

import (
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/flipmoo/begripp-sub003/internal/metrics"
)

// Counters holds the monotonic operation counters for one scope
// (global, or a single key prefix).
type Counters struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Flushes int64 `json:"flushes"`
}

// Stats is the point-in-time cache report returned by Stats. Sizes and
// the hit ratio are derived at call time; counters are monotonic since
// process start and are never reset by Flush.
type Stats struct {
	Counters

	HitRatio    float64             `json:"hit_ratio"`
	FastKeys    int                 `json:"fast_keys"`
	DurableKeys int                 `json:"durable_keys"`
	ByPrefix    map[string]Counters `json:"by_prefix"`
	GeneratedAt time.Time           `json:"generated_at"`
}

type statsCounters struct {
	mu       sync.Mutex
	global   Counters
	byPrefix map[string]*Counters
}

func newStatsCounters() statsCounters {
	return statsCounters{byPrefix: make(map[string]*Counters)}
}

func (s *statsCounters) forPrefix(key string) *Counters {
	prefix := prefixOf(key)
	counters, ok := s.byPrefix[prefix]
	if !ok {
		counters = &Counters{}
		s.byPrefix[prefix] = counters
	}
	return counters
}

func (s *statsCounters) recordHit(key string, tier Tier) {
	s.mu.Lock()
	s.global.Hits++
	s.forPrefix(key).Hits++
	s.mu.Unlock()
	metrics.CacheHits.WithLabelValues(string(tier)).Inc()
}

func (s *statsCounters) recordMiss(key string) {
	s.mu.Lock()
	s.global.Misses++
	s.forPrefix(key).Misses++
	s.mu.Unlock()
	metrics.CacheMisses.Inc()
}

func (s *statsCounters) recordSet(key string) {
	s.mu.Lock()
	s.global.Sets++
	s.forPrefix(key).Sets++
	s.mu.Unlock()
}

// recordDelete counts n removed keys against the prefix derived from
// key (for DeleteByPrefix the prefix itself is passed).
func (s *statsCounters) recordDelete(key string, n int64) {
	s.mu.Lock()
	s.global.Deletes += n
	s.forPrefix(key).Deletes += n
	s.mu.Unlock()
}

func (s *statsCounters) recordFlush() {
	s.mu.Lock()
	s.global.Flushes++
	s.mu.Unlock()
}

func (s *statsCounters) snapshot() (Counters, map[string]Counters) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byPrefix := make(map[string]Counters, len(s.byPrefix))
	for prefix, counters := range s.byPrefix {
		byPrefix[prefix] = *counters
	}
	return s.global, byPrefix
}

// Stats reports current counters and derived figures. The durable key
// count walks the Badger keyspace; expired-but-unreclaimed entries in
// either tier are included, reflecting the lazy expiry model.
func (c *Cache) Stats() Stats {
	global, byPrefix := c.stats.snapshot()

	c.mu.RLock()
	fastKeys := len(c.fast)
	c.mu.RUnlock()

	durableKeys := 0
	_ = c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			durableKeys++
		}
		return nil
	})

	ratio := 0.0
	if total := global.Hits + global.Misses; total > 0 {
		ratio = float64(global.Hits) / float64(total)
	}

	return Stats{
		Counters:    global,
		HitRatio:    ratio,
		FastKeys:    fastKeys,
		DurableKeys: durableKeys,
		ByPrefix:    byPrefix,
		GeneratedAt: c.now(),
	}
}
