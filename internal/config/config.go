// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

// Package config defines the pipeline configuration and its layered
// loading: struct defaults, then an optional YAML file, then environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrMissingCredentials marks a configuration that cannot reach the KV
// store. It aborts startup before any network activity.
var ErrMissingCredentials = errors.New("cloudflare KV credentials not configured")

// Config is the root configuration for one pipeline run.
type Config struct {
	Scrape    ScrapeConfig    `koanf:"scrape"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Breaker   BreakerConfig   `koanf:"breaker"`
	KV        KVConfig        `koanf:"kv"`
	NG        NGConfig        `koanf:"ng"`
	Shard     ShardConfig     `koanf:"shard"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ScrapeConfig tunes the fetch side of the pipeline. The delays are
// deliberate pacing choices, independent of rate-limiter admission.
type ScrapeConfig struct {
	// CrawlerUserAgent is sent to the HTML ranking pages. The crawler
	// identity plus the sensitive_material_status cookie is what makes the
	// page include masked items.
	CrawlerUserAgent string `koanf:"crawler_user_agent"`

	// BrowserUserAgent is sent to the nvapi endpoints.
	BrowserUserAgent string `koanf:"browser_user_agent"`

	TargetCount    int `koanf:"target_count" validate:"gt=0"`
	TagTargetCount int `koanf:"tag_target_count" validate:"gt=0"`
	MaxPages       int `koanf:"max_pages" validate:"gt=0"`

	// MaxTopicTags caps how many discovered tags get their own sub-ranking.
	MaxTopicTags int `koanf:"max_topic_tags"`

	PageDelay   time.Duration `koanf:"page_delay"`
	TagDelay    time.Duration `koanf:"tag_delay"`
	PeriodDelay time.Duration `koanf:"period_delay"`
	BatchPause  time.Duration `koanf:"batch_pause"`

	// BatchSize is how many genres run concurrently.
	BatchSize int `koanf:"batch_size" validate:"gt=0"`

	RetryAttempts  int           `koanf:"retry_attempts"`
	RetryBaseDelay time.Duration `koanf:"retry_base_delay"`
	RetryMaxDelay  time.Duration `koanf:"retry_max_delay"`

	// SnapshotBatchSize is the id count per snapshot-search backfill call.
	SnapshotBatchSize  int           `koanf:"snapshot_batch_size" validate:"gt=0,lte=50"`
	SnapshotBatchDelay time.Duration `koanf:"snapshot_batch_delay"`
}

// RateLimitConfig holds per-host sliding windows. Each host the pipeline
// talks to gets its own window.
type RateLimitConfig struct {
	HTML   HostRateLimit `koanf:"html"`
	API    HostRateLimit `koanf:"api"`
	Search HostRateLimit `koanf:"search"`
}

// HostRateLimit is one sliding-window budget.
type HostRateLimit struct {
	MaxRequests int           `koanf:"max_requests" validate:"gt=0"`
	Window      time.Duration `koanf:"window"`
}

// BreakerConfig tunes the per-host circuit breakers.
type BreakerConfig struct {
	// Threshold is the consecutive-failure count that opens the circuit.
	Threshold uint32 `koanf:"threshold" validate:"gt=0"`

	// Timeout is how long an open circuit rejects calls before allowing a
	// single half-open probe.
	Timeout time.Duration `koanf:"timeout"`
}

// KVConfig holds the Cloudflare KV REST credentials and write pacing.
type KVConfig struct {
	AccountID   string `koanf:"account_id" validate:"required"`
	NamespaceID string `koanf:"namespace_id" validate:"required"`
	APIToken    string `koanf:"api_token" validate:"required"`

	// SnapshotKey is the single key the whole snapshot is published under.
	SnapshotKey string `koanf:"snapshot_key"`

	// WriteInterval spaces successive writes to the same key. Cloudflare
	// KV enforces roughly one write per second per key.
	WriteInterval time.Duration `koanf:"write_interval"`

	WriteRetries int           `koanf:"write_retries"`
	RetryDelay   time.Duration `koanf:"retry_delay"`
	Timeout      time.Duration `koanf:"timeout"`
}

// NGConfig holds block-list storage keys and matching behavior.
type NGConfig struct {
	ManualKey  string `koanf:"manual_key"`
	DerivedKey string `koanf:"derived_key"`

	// CaseSensitive controls partial title/author matching. The upstream
	// behavior was unspecified; matching is case-insensitive by default.
	CaseSensitive bool `koanf:"case_sensitive"`

	// NormalizeUnicode applies NFKC before partial-match comparison so
	// half-width and full-width variants of the same name both match.
	NormalizeUnicode bool `koanf:"normalize_unicode"`
}

// ShardConfig holds the local BadgerDB path used by grouped runs.
type ShardConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate checks structural constraints and credential presence.
func (c *Config) Validate() error {
	if c.KV.AccountID == "" || c.KV.NamespaceID == "" || c.KV.APIToken == "" {
		return ErrMissingCredentials
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
