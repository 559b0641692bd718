// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

// Package config loads and validates Begripp configuration from layered
// sources: struct defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Begripp server.
type Config struct {
	Gripp    GrippConfig    `koanf:"gripp"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Cache    CacheConfig    `koanf:"cache"`
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// GrippConfig holds the upstream Gripp API connection settings.
type GrippConfig struct {
	// URL is the Gripp API endpoint, e.g. https://api.gripp.com/public/api3.php
	URL string `koanf:"url" validate:"required,url"`

	// Token is the Gripp API bearer token.
	Token string `koanf:"token" validate:"required"`

	// RequestTimeout bounds a single HTTP request to the API.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// RateLimit is the sustained ceiling on upstream calls in requests
	// per second, enforced across retries and concurrent fetches.
	RateLimit float64 `koanf:"rate_limit" validate:"gt=0"`

	// RateBurst is the rate limiter burst size.
	RateBurst int `koanf:"rate_burst" validate:"gte=1"`
}

// DatabaseConfig holds DuckDB settings for the local mirror store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. ":memory:" gives an in-memory
	// database, used by tests.
	Path string `koanf:"path" validate:"required"`

	// MaxMemory is DuckDB's memory limit, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads is the DuckDB thread count. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// SyncConfig tunes the synchronization pipeline.
type SyncConfig struct {
	// Interval between timer-triggered full syncs. 0 disables the timer;
	// syncs can still be triggered over HTTP.
	Interval time.Duration `koanf:"interval"`

	// Lookback is the date range used by timer-triggered syncs,
	// counted back from today.
	Lookback time.Duration `koanf:"lookback"`

	// WindowDays is the size of one date window when chunking a range.
	WindowDays int `koanf:"window_days" validate:"gte=1"`

	// PageSize is the upstream page size, fixed for the life of a sync.
	PageSize int `koanf:"page_size" validate:"gte=1"`

	// BatchSize is the number of rows per prepared-statement batch when
	// writing to DuckDB.
	BatchSize int `koanf:"batch_size" validate:"gte=1"`

	// RetryAttempts is the retry budget per upstream call: the number of
	// retries after the first attempt, so 5 means up to 6 calls total.
	RetryAttempts int `koanf:"retry_attempts" validate:"gte=1"`

	// RetryBaseDelay is the first retry delay; it doubles per attempt.
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`

	// PageDelay is the fixed pause between page requests within a window.
	PageDelay time.Duration `koanf:"page_delay"`

	// WindowDelay is the fixed pause between date windows.
	WindowDelay time.Duration `koanf:"window_delay"`

	// FanOut bounds concurrent per-employee fetches (hours, absences).
	FanOut int `koanf:"fan_out" validate:"gte=1"`

	// FanOutGroupDelay is the pause between fan-out groups.
	FanOutGroupDelay time.Duration `koanf:"fan_out_group_delay"`
}

// CacheConfig tunes the two-tier read cache.
type CacheConfig struct {
	// DefaultTTL applies when callers do not pass an explicit TTL.
	DefaultTTL time.Duration `koanf:"default_ttl"`

	// Path is the BadgerDB directory for the durable tier.
	Path string `koanf:"path"`

	// InMemory runs the durable tier without disk persistence.
	// Intended for tests.
	InMemory bool `koanf:"in_memory"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`

	// CORSOrigins lists allowed origins for the dashboard frontend.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs requests per RateLimitWindow per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for consistency. It runs the struct
// tag validators and then the cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Sync.RetryBaseDelay <= 0 {
		return fmt.Errorf("sync.retry_base_delay must be positive, got %s", c.Sync.RetryBaseDelay)
	}
	if c.Sync.PageDelay < 0 || c.Sync.WindowDelay < 0 {
		return fmt.Errorf("sync delays must not be negative")
	}
	if c.Sync.Interval > 0 && c.Sync.Lookback <= 0 {
		return fmt.Errorf("sync.lookback must be positive when sync.interval is set")
	}
	if !c.Cache.InMemory && c.Cache.Path == "" {
		return fmt.Errorf("cache.path is required unless cache.in_memory is set")
	}
	return nil
}
