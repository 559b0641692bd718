// Begripp - Gripp CRM Operations Dashboard
// Copyright 2026 flipmoo
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/flipmoo/begripp-sub003

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// validEnv sets the minimum environment for a loadable config.
func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GRIPP_URL", "https://api.gripp.com/public/api3.php")
	t.Setenv("GRIPP_API_TOKEN", "test-token")
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")
}

func TestLoadDefaults(t *testing.T) {
	validEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Sync.WindowDays != 7 {
		t.Errorf("default window days = %d, want 7", cfg.Sync.WindowDays)
	}
	if cfg.Sync.PageSize != 250 {
		t.Errorf("default page size = %d, want 250", cfg.Sync.PageSize)
	}
	if cfg.Sync.RetryAttempts != 5 {
		t.Errorf("default retry attempts = %d, want 5", cfg.Sync.RetryAttempts)
	}
	if cfg.Sync.RetryBaseDelay != 2*time.Second {
		t.Errorf("default retry base delay = %s, want 2s", cfg.Sync.RetryBaseDelay)
	}
	if cfg.Sync.FanOut != 5 {
		t.Errorf("default fan-out = %d, want 5", cfg.Sync.FanOut)
	}
	if cfg.Cache.DefaultTTL != 5*time.Minute {
		t.Errorf("default cache TTL = %s, want 5m", cfg.Cache.DefaultTTL)
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	validEnv(t)
	t.Setenv("SYNC_WINDOW_DAYS", "14")
	t.Setenv("SYNC_PAGE_SIZE", "100")
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Sync.WindowDays != 14 {
		t.Errorf("window days = %d, want 14", cfg.Sync.WindowDays)
	}
	if cfg.Sync.PageSize != 100 {
		t.Errorf("page size = %d, want 100", cfg.Sync.PageSize)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestConfigFileLayered(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("sync:\n  window_days: 3\nserver:\n  port: 9090\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	validEnv(t)
	t.Setenv("CONFIG_PATH", path)
	// Env still beats the file.
	t.Setenv("HTTP_PORT", "9191")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Sync.WindowDays != 3 {
		t.Errorf("window days from file = %d, want 3", cfg.Sync.WindowDays)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("port = %d, want env override 9191", cfg.Server.Port)
	}
}

func TestCORSOriginsFromEnv(t *testing.T) {
	validEnv(t)
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if len(cfg.Server.CORSOrigins) != 2 {
		t.Fatalf("cors origins = %v, want 2 entries", cfg.Server.CORSOrigins)
	}
	if cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins[1] = %q", cfg.Server.CORSOrigins[1])
	}
}

func TestValidateRejectsMissingToken(t *testing.T) {
	cfg := defaultConfig()
	cfg.Gripp.URL = "https://api.gripp.com/public/api3.php"
	cfg.Gripp.Token = ""

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing token")
	}
}

func TestValidateRejectsBadDelays(t *testing.T) {
	cfg := defaultConfig()
	cfg.Gripp.URL = "https://api.gripp.com/public/api3.php"
	cfg.Gripp.Token = "x"
	cfg.Sync.RetryBaseDelay = 0

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero retry base delay")
	}
}

func TestValidateRequiresCachePath(t *testing.T) {
	cfg := defaultConfig()
	cfg.Gripp.URL = "https://api.gripp.com/public/api3.php"
	cfg.Gripp.Token = "x"
	cfg.Cache.Path = ""
	cfg.Cache.InMemory = false

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing cache path")
	}

	cfg.Cache.InMemory = true
	if err := cfg.Validate(); err != nil {
		t.Errorf("in-memory cache should not require a path: %v", err)
	}
}
