// Golazod - Football Fixture Cache and Prefetch Service
// Copyright 2026 Golazo Live contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/golazo-live/golazod

// Package config provides layered configuration for Golazod using Koanf v2.
//
// Precedence (highest wins): environment variables (GOLAZO_ prefix) >
// YAML config file > built-in defaults.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Golazod daemon.
type Config struct {
	Server   ServerConfig     `koanf:"server"`
	Logging  LoggingConfig    `koanf:"logging"`
	Store    StoreConfig      `koanf:"store"`
	Football FootballConfig   `koanf:"football"`
	Cache    CacheConfig      `koanf:"cache"`
	Images   ImageCacheConfig `koanf:"images"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// StoreConfig holds persistent key-value store settings.
type StoreConfig struct {
	// Path is the BadgerDB directory. Ignored when InMemory is true.
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// FootballConfig holds settings for the api-football.com v3 client.
type FootballConfig struct {
	BaseURL           string        `koanf:"base_url" validate:"url"`
	APIKey            string        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout"`
	Timezone          string        `koanf:"timezone"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int           `koanf:"burst" validate:"gt=0"`
	// BackoffDefault is applied on HTTP 429 when no Retry-After header
	// is present.
	BackoffDefault time.Duration `koanf:"backoff_default"`
}

// CacheConfig holds Data Cache Coordinator settings.
type CacheConfig struct {
	// TTL is the freshness window for a completed fixture entry.
	TTL time.Duration `koanf:"ttl" validate:"gt=0"`

	// MaxEntries caps the in-memory map; oldest-timestamp entries are
	// pruned beyond it.
	MaxEntries int `koanf:"max_entries" validate:"gt=0"`

	// PrefetchRadius is the number of days fetched on each side of a
	// selected date during a prefetch sweep.
	PrefetchRadius   int           `koanf:"prefetch_radius" validate:"gte=0"`
	PrefetchBatch    int           `koanf:"prefetch_batch" validate:"gt=0"`
	PrefetchDelay    time.Duration `koanf:"prefetch_delay"`
	PrefetchDebounce time.Duration `koanf:"prefetch_debounce"`

	// PersistDebounce coalesces bursts of cache mutations into a single
	// batched store write.
	PersistDebounce time.Duration `koanf:"persist_debounce"`

	// FastLoadCount is how many persisted entries are loaded synchronously
	// at startup; the remainder loads in the background.
	FastLoadCount       int           `koanf:"fast_load_count" validate:"gt=0"`
	BackgroundLoadDelay time.Duration `koanf:"background_load_delay"`

	// TodayFreshWindow is the short freshness window for today's fixtures.
	TodayFreshWindow time.Duration `koanf:"today_fresh_window" validate:"gt=0"`
	TodayCheckPeriod time.Duration `koanf:"today_check_period" validate:"gt=0"`

	// OthersSyncInterval is the long period between sweeps of nearby
	// non-today dates.
	OthersSyncInterval time.Duration `koanf:"others_sync_interval" validate:"gt=0"`
	OthersSyncRadius   int           `koanf:"others_sync_radius" validate:"gte=0"`
	OthersSyncDelay    time.Duration `koanf:"others_sync_delay"`
}

// ImageCacheConfig holds Image Resolution Cache settings.
type ImageCacheConfig struct {
	// TTL is the logical freshness window for a resolved URL; stale
	// entries are still served while a background refresh runs.
	TTL time.Duration `koanf:"ttl" validate:"gt=0"`

	// CoolDown suppresses re-resolution of identities that recently
	// failed validation.
	CoolDown time.Duration `koanf:"cool_down" validate:"gt=0"`

	StartConcurrency int `koanf:"start_concurrency" validate:"gt=0"`
	MinConcurrency   int `koanf:"min_concurrency" validate:"gt=0"`
	MaxConcurrency   int `koanf:"max_concurrency" validate:"gt=0"`

	// AdaptEvery is the number of completed tasks between concurrency
	// adjustments; HighWaterWait/LowWaterWait bound the average queue
	// wait that triggers a step down/up.
	AdaptEvery    int           `koanf:"adapt_every" validate:"gt=0"`
	HighWaterWait time.Duration `koanf:"high_water_wait"`
	LowWaterWait  time.Duration `koanf:"low_water_wait"`

	SizeCap         int           `koanf:"size_cap" validate:"gt=0"`
	PersistDebounce time.Duration `koanf:"persist_debounce"`

	// ValidateURLs enables the HEAD existence check on resolved URLs.
	ValidateURLs bool `koanf:"validate_urls"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8642,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Store: StoreConfig{
			Path:     "/data/golazod",
			InMemory: false,
		},
		Football: FootballConfig{
			BaseURL:           "https://v3.football.api-sports.io",
			APIKey:            "",
			Timeout:           20 * time.Second,
			Timezone:          "UTC",
			RequestsPerSecond: 5,
			Burst:             10,
			BackoffDefault:    30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:                 30 * time.Minute,
			MaxEntries:          30,
			PrefetchRadius:      3,
			PrefetchBatch:       3,
			PrefetchDelay:       50 * time.Millisecond,
			PrefetchDebounce:    100 * time.Millisecond,
			PersistDebounce:     2 * time.Second,
			FastLoadCount:       8,
			BackgroundLoadDelay: time.Second,
			TodayFreshWindow:    20 * time.Minute,
			TodayCheckPeriod:    5 * time.Minute,
			OthersSyncInterval:  24 * time.Hour,
			OthersSyncRadius:    2,
			OthersSyncDelay:     3 * time.Second,
		},
		Images: ImageCacheConfig{
			TTL:              30 * 24 * time.Hour,
			CoolDown:         4 * time.Hour,
			StartConcurrency: 8,
			MinConcurrency:   3,
			MaxConcurrency:   12,
			AdaptEvery:       15,
			HighWaterWait:    250 * time.Millisecond,
			LowWaterWait:     60 * time.Millisecond,
			SizeCap:          1000,
			PersistDebounce:  2 * time.Second,
			ValidateURLs:     true,
		},
	}
}

// Validate checks structural constraints plus the cross-field rules the
// validator tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	if c.Images.MinConcurrency > c.Images.MaxConcurrency {
		return fmt.Errorf("images: min_concurrency %d exceeds max_concurrency %d",
			c.Images.MinConcurrency, c.Images.MaxConcurrency)
	}
	if c.Images.StartConcurrency < c.Images.MinConcurrency ||
		c.Images.StartConcurrency > c.Images.MaxConcurrency {
		return fmt.Errorf("images: start_concurrency %d outside [%d, %d]",
			c.Images.StartConcurrency, c.Images.MinConcurrency, c.Images.MaxConcurrency)
	}
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("store: path is required unless in_memory is set")
	}
	return nil
}
