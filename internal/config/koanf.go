// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/begripp/config.yaml",
	"/etc/begripp/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults load
// first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Gripp: GrippConfig{
			URL:            "",
			Token:          "",
			RequestTimeout: 30 * time.Second,
			RateLimit:      2.0,
			RateBurst:      1,
		},
		Database: DatabaseConfig{
			Path:      "/data/begripp.duckdb",
			MaxMemory: "2GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Sync: SyncConfig{
			Interval:         0, // timer disabled by default; HTTP-triggered
			Lookback:         90 * 24 * time.Hour,
			WindowDays:       7,
			PageSize:         250,
			BatchSize:        100,
			RetryAttempts:    5,
			RetryBaseDelay:   2 * time.Second,
			PageDelay:        500 * time.Millisecond,
			WindowDelay:      time.Second,
			FanOut:           5,
			FanOutGroupDelay: 500 * time.Millisecond,
		},
		Cache: CacheConfig{
			DefaultTTL: 5 * time.Minute,
			Path:       "/data/cache",
			InMemory:   false,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3838,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as strings from environment variables.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so random environment noise cannot
// pollute the configuration.
//
// Examples:
//   - GRIPP_URL        -> gripp.url
//   - GRIPP_API_TOKEN  -> gripp.token
//   - SYNC_WINDOW_DAYS -> sync.window_days
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Gripp upstream
		"gripp_url":             "gripp.url",
		"gripp_api_token":       "gripp.token",
		"gripp_request_timeout": "gripp.request_timeout",
		"gripp_rate_limit":      "gripp.rate_limit",
		"gripp_rate_burst":      "gripp.rate_burst",

		// Database
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Sync
		"sync_interval":            "sync.interval",
		"sync_lookback":            "sync.lookback",
		"sync_window_days":         "sync.window_days",
		"sync_page_size":           "sync.page_size",
		"sync_batch_size":          "sync.batch_size",
		"sync_retry_attempts":      "sync.retry_attempts",
		"sync_retry_base_delay":    "sync.retry_base_delay",
		"sync_page_delay":          "sync.page_delay",
		"sync_window_delay":        "sync.window_delay",
		"sync_fan_out":             "sync.fan_out",
		"sync_fan_out_group_delay": "sync.fan_out_group_delay",

		// Cache
		"cache_default_ttl": "cache.default_ttl",
		"cache_path":        "cache.path",
		"cache_in_memory":   "cache.in_memory",

		// Server
		"http_host":           "server.host",
		"http_port":           "server.port",
		"http_timeout":        "server.timeout",
		"cors_origins":        "server.cors_origins",
		"rate_limit_requests": "server.rate_limit_reqs",
		"rate_limit_window":   "server.rate_limit_window",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
