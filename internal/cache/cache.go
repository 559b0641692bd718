// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

// Package cache implements the two-tier read cache in front of the
// DuckDB mirror: a fast in-process tier backed by a map and a durable
// tier backed by BadgerDB that survives restarts.
//
// The cache is an explicitly constructed, injectable instance; there is
// no package-level singleton. Expiry is lazy: an expired entry is only
// reclaimed when next read, or by Delete/DeleteByPrefix/Flush. Because
// of that, size and memory figures in Stats are estimates recomputed
// from the live key sets on demand, never maintained incrementally.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/flipmoo/begripp-sub003/internal/logging"
	"github.com/flipmoo/begripp-sub003/internal/metrics"
)

// Tier selects where a Set is persisted. Every Set writes the fast
// tier; TierDurable additionally serializes the value into Badger.
type Tier string

const (
	TierFast    Tier = "fast"
	TierDurable Tier = "durable"
)

// Entry is a fast-tier cache entry. Value holds either the original
// value passed to Set or, for entries mirrored from the durable tier,
// the serialized JSON payload (decoded lazily by Get).
type Entry struct {
	Value     interface{}
	CreatedAt time.Time
	ExpiresAt time.Time
}

// durableEntry is the serialized form stored in Badger. Expiry is part
// of the payload rather than a Badger TTL so that expired reads are
// observed (and counted) by this package, not silently dropped.
type durableEntry struct {
	Value     json.RawMessage `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Config configures a Cache.
type Config struct {
	// DefaultTTL applies when Set is called with ttl <= 0.
	DefaultTTL time.Duration

	// Path is the Badger directory for the durable tier.
	Path string

	// InMemory runs Badger without disk persistence (tests).
	InMemory bool
}

// Cache is the two-tier cache. Safe for concurrent use.
type Cache struct {
	mu   sync.RWMutex
	fast map[string]Entry

	db         *badger.DB
	defaultTTL time.Duration

	stats statsCounters

	// now is injectable for deterministic TTL tests.
	now func() time.Time
}

// New opens the durable tier and returns a ready cache.
func New(cfg Config) (*Cache, error) {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}

	opts := badger.DefaultOptions(cfg.Path).
		WithLogger(nil).
		WithInMemory(cfg.InMemory)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open durable cache tier: %w", err)
	}

	return &Cache{
		fast:       make(map[string]Entry),
		db:         db,
		defaultTTL: cfg.DefaultTTL,
		stats:      newStatsCounters(),
		now:        time.Now,
	}, nil
}

// Close closes the durable tier.
func (c *Cache) Close() error {
	return c.db.Close()
}

// prefixOf returns the logical namespace of a key: everything up to and
// including the first colon, or "" for un-namespaced keys.
func prefixOf(key string) string {
	if idx := strings.IndexByte(key, ':'); idx >= 0 {
		return key[:idx+1]
	}
	return ""
}

// Get retrieves a raw value. The fast tier is consulted first; on a
// fast-tier miss the durable tier is checked and, when present and not
// expired, mirrored into the fast tier with its remaining TTL.
//
// Values that round-tripped through the durable tier come back as
// json.RawMessage; use GetAs to decode into a concrete type.
func (c *Cache) Get(key string) (interface{}, bool) {
	now := c.now()

	c.mu.RLock()
	entry, exists := c.fast[key]
	c.mu.RUnlock()

	if exists {
		if now.Before(entry.ExpiresAt) {
			c.stats.recordHit(key, TierFast)
			return entry.Value, true
		}
		// Lazy expiry of the fast copy; the durable tier may still
		// hold the key if they were written with different TTLs.
		c.mu.Lock()
		delete(c.fast, key)
		c.mu.Unlock()
		metrics.CacheEvictions.WithLabelValues("expired").Inc()
	}

	value, ok := c.getDurable(key, now)
	if !ok {
		c.stats.recordMiss(key)
		return nil, false
	}

	c.stats.recordHit(key, TierDurable)
	return value, true
}

// getDurable reads the durable tier. Expired entries are deleted and
// counted as a stats delete; the caller then records the miss.
func (c *Cache) getDurable(key string, now time.Time) (interface{}, bool) {
	var stored durableEntry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		})
	})
	if err != nil {
		return nil, false
	}

	if !now.Before(stored.ExpiresAt) {
		if delErr := c.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(key))
		}); delErr != nil {
			logging.Warn().Err(delErr).Str("key", key).Msg("Failed to delete expired durable cache entry")
		}
		c.stats.recordDelete(key, 1)
		metrics.CacheEvictions.WithLabelValues("expired").Inc()
		return nil, false
	}

	// Mirror into the fast tier with the remaining TTL. The mirror is
	// not independently authoritative; it inherits the original expiry.
	c.mu.Lock()
	c.fast[key] = Entry{
		Value:     stored.Value,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	}
	c.mu.Unlock()

	return stored.Value, true
}

// Set stores a value. The fast tier is always written; TierDurable
// additionally serializes the value into Badger with the same expiry.
// A durable-tier write failure is logged and never surfaced: the cache
// is not the system of record and the fast copy still serves.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration, tier Tier) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()
	expiresAt := now.Add(ttl)

	c.mu.Lock()
	c.fast[key] = Entry{Value: value, CreatedAt: now, ExpiresAt: expiresAt}
	c.mu.Unlock()

	c.stats.recordSet(key)

	if tier != TierDurable {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Failed to serialize value for durable cache tier")
		return
	}
	data, err := json.Marshal(durableEntry{Value: raw, CreatedAt: now, ExpiresAt: expiresAt})
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Failed to serialize durable cache entry")
		return
	}

	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	}); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Failed to persist cache entry to durable tier")
	}
}

// Delete removes a key from both tiers. Returns true when the key was
// present in at least one tier.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	_, inFast := c.fast[key]
	delete(c.fast, key)
	c.mu.Unlock()

	inDurable := false
	err := c.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			return err
		}
		inDurable = true
		return txn.Delete([]byte(key))
	})
	if err != nil && !isNotFound(err) {
		logging.Warn().Err(err).Str("key", key).Msg("Failed to delete durable cache entry")
	}

	if inFast || inDurable {
		c.stats.recordDelete(key, 1)
		metrics.CacheEvictions.WithLabelValues("deleted").Inc()
		return true
	}
	return false
}

// DeleteByPrefix removes every entry whose key starts with prefix from
// both tiers and returns the number of distinct keys removed. Keys
// present in both tiers count once.
func (c *Cache) DeleteByPrefix(prefix string) int {
	keys := make(map[string]struct{})

	c.mu.Lock()
	for key := range c.fast {
		if strings.HasPrefix(key, prefix) {
			keys[key] = struct{}{}
			delete(c.fast, key)
		}
	}
	c.mu.Unlock()

	durable, err := c.durableKeys(prefix)
	if err != nil {
		logging.Warn().Err(err).Str("prefix", prefix).Msg("Failed to scan durable cache entries by prefix")
	}
	for _, key := range durable {
		keys[key] = struct{}{}
	}
	if err := c.deleteDurable(durable); err != nil {
		logging.Warn().Err(err).Str("prefix", prefix).Msg("Failed to delete durable cache entries by prefix")
	}

	count := len(keys)
	if count > 0 {
		c.stats.recordDelete(prefix, int64(count))
		metrics.CacheEvictions.WithLabelValues("prefix").Add(float64(count))
	}
	return count
}

// durableKeys lists the durable-tier keys with the given prefix. An
// empty prefix lists every key.
func (c *Cache) durableKeys(prefix string) ([]string, error) {
	var keys []string
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		pfx := []byte(prefix)
		for it.Seek(pfx); it.ValidForPrefix(pfx); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}

// deleteDurable removes keys through a write batch, which splits the
// work across transactions internally so bulk invalidation is not
// bounded by Badger's per-transaction size limit.
func (c *Cache) deleteDurable(keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete([]byte(key)); err != nil {
			return err
		}
	}
	return wb.Flush()
}

// Flush drops every entry in both tiers and returns the number of
// distinct keys removed.
func (c *Cache) Flush() int {
	keys := make(map[string]struct{})

	c.mu.Lock()
	for key := range c.fast {
		keys[key] = struct{}{}
	}
	c.fast = make(map[string]Entry)
	c.mu.Unlock()

	durable, err := c.durableKeys("")
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to scan durable cache tier")
	}
	for _, key := range durable {
		keys[key] = struct{}{}
	}
	if err := c.deleteDurable(durable); err != nil {
		logging.Warn().Err(err).Msg("Failed to flush durable cache tier")
	}

	count := len(keys)
	c.stats.recordFlush()
	metrics.CacheEvictions.WithLabelValues("flush").Add(float64(count))
	return count
}

func isNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

// GetAs retrieves a value decoded into T. Fast-tier values stored as T
// are returned directly; values that round-tripped through the durable
// tier are unmarshaled.
func GetAs[T any](c *Cache, key string) (T, bool) {
	var zero T

	value, ok := c.Get(key)
	if !ok {
		return zero, false
	}

	if typed, ok := value.(T); ok {
		return typed, true
	}

	raw, ok := value.(json.RawMessage)
	if !ok {
		return zero, false
	}
	var decoded T
	if err := json.Unmarshal(raw, &decoded); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("Failed to decode cached value")
		return zero, false
	}

	// Replace the raw mirror so repeat reads skip the unmarshal.
	c.mu.Lock()
	if entry, exists := c.fast[key]; exists {
		entry.Value = decoded
		c.fast[key] = entry
	}
	c.mu.Unlock()

	return decoded, true
}

// GetOrSet is the read-through helper: on a miss the factory is invoked
// once, its result cached, then returned. Concurrent callers for the
// same key during a miss are not deduplicated (no single-flight); a
// stampede is accepted because updates are sync-triggered, not
// request-triggered.
func GetOrSet[T any](c *Cache, key string, ttl time.Duration, tier Tier, factory func() (T, error)) (T, error) {
	if cached, ok := GetAs[T](c, key); ok {
		return cached, nil
	}

	value, err := factory()
	if err != nil {
		var zero T
		return zero, err
	}

	c.Set(key, value, ttl, tier)
	return value, nil
}
