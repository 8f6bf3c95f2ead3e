// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Expected default cache TTL 30m, got %v", cfg.Cache.TTL)
	}
	if cfg.Cache.MaxEntries != 30 {
		t.Errorf("Expected default max_entries 30, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Cache.TodayFreshWindow != 20*time.Minute {
		t.Errorf("Expected today_fresh_window 20m, got %v", cfg.Cache.TodayFreshWindow)
	}
	if cfg.Images.StartConcurrency != 8 || cfg.Images.MinConcurrency != 3 || cfg.Images.MaxConcurrency != 12 {
		t.Errorf("Unexpected image concurrency defaults: %d/%d/%d",
			cfg.Images.StartConcurrency, cfg.Images.MinConcurrency, cfg.Images.MaxConcurrency)
	}
	if cfg.Football.Timezone != "UTC" {
		t.Errorf("Expected default timezone UTC, got %q", cfg.Football.Timezone)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GOLAZO_CACHE_MAX_ENTRIES", "50")
	t.Setenv("GOLAZO_LOGGING_LEVEL", "debug")
	t.Setenv("GOLAZO_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Cache.MaxEntries != 50 {
		t.Errorf("Expected max_entries 50 from env, got %d", cfg.Cache.MaxEntries)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected logging level debug from env, got %q", cfg.Logging.Level)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[0] != "https://a.example" {
		t.Errorf("Unexpected CORS origins: %v", cfg.Server.CORSOrigins)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("cache:\n  ttl: 15m\nfootball:\n  timezone: Europe/Madrid\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Cache.TTL != 15*time.Minute {
		t.Errorf("Expected TTL 15m from file, got %v", cfg.Cache.TTL)
	}
	if cfg.Football.Timezone != "Europe/Madrid" {
		t.Errorf("Expected timezone from file, got %q", cfg.Football.Timezone)
	}
	// Defaults not mentioned in the file survive.
	if cfg.Cache.PrefetchRadius != 3 {
		t.Errorf("Expected prefetch_radius default 3, got %d", cfg.Cache.PrefetchRadius)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }},
		{"min over max concurrency", func(c *Config) { c.Images.MinConcurrency = 20 }},
		{"start outside bounds", func(c *Config) { c.Images.StartConcurrency = 1 }},
		{"missing store path", func(c *Config) { c.Store.Path = ""; c.Store.InMemory = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"GOLAZO_CACHE_TTL", "cache.ttl"},
		{"GOLAZO_CACHE_TODAY_FRESH_WINDOW", "cache.today_fresh_window"},
		{"GOLAZO_FOOTBALL_API_KEY", "football.api_key"},
		{"GOLAZO_PORT", "port"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
