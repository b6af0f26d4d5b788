// nico-ranking-custom - Niconico Ranking Aggregation Pipeline
// Copyright 2026 YJSN180
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/YJSN180/nico-ranking-custom-sub000

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
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/nico-ranking/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They match the pacing the
// original update scripts used in production.
func defaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			CrawlerUserAgent: "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
			BrowserUserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			TargetCount:      500,
			TagTargetCount:   300,
			MaxPages:         10,
			MaxTopicTags:     20,
			PageDelay:        500 * time.Millisecond,
			TagDelay:         500 * time.Millisecond,
			PeriodDelay:      1 * time.Second,
			BatchPause:       2 * time.Second,
			BatchSize:        4,
			RetryAttempts:    2,
			RetryBaseDelay:   1 * time.Second,
			RetryMaxDelay:    5 * time.Second,

			SnapshotBatchSize:  50,
			SnapshotBatchDelay: 100 * time.Millisecond,
		},
		RateLimit: RateLimitConfig{
			HTML:   HostRateLimit{MaxRequests: 60, Window: time.Minute},
			API:    HostRateLimit{MaxRequests: 60, Window: time.Minute},
			Search: HostRateLimit{MaxRequests: 60, Window: time.Minute},
		},
		Breaker: BreakerConfig{
			Threshold: 5,
			Timeout:   3 * time.Minute,
		},
		KV: KVConfig{
			SnapshotKey:   "RANKING_LATEST",
			WriteInterval: 1 * time.Second,
			WriteRetries:  3,
			RetryDelay:    1 * time.Second,
			Timeout:       30 * time.Second,
		},
		NG: NGConfig{
			ManualKey:        "ng-list-manual",
			DerivedKey:       "ng-list-derived",
			CaseSensitive:    false,
			NormalizeUnicode: true,
		},
		Shard: ShardConfig{
			Path: "./data/shards",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
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

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
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

// envTransformFunc maps environment variable names to koanf config paths.
// The CLOUDFLARE_* names predate this config layer and are kept for the
// existing deployment workflows.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		"cloudflare_account_id":       "kv.account_id",
		"cloudflare_kv_namespace_id":  "kv.namespace_id",
		"cloudflare_kv_api_token":     "kv.api_token",
		"ranking_target_count":        "scrape.target_count",
		"ranking_tag_target_count":    "scrape.tag_target_count",
		"ranking_max_pages":           "scrape.max_pages",
		"ranking_batch_size":          "scrape.batch_size",
		"ng_case_sensitive":           "ng.case_sensitive",
		"ng_normalize_unicode":        "ng.normalize_unicode",
		"shard_store_path":            "shard.path",
		"log_level":                   "logging.level",
		"log_format":                  "logging.format",
	}
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown variables are dropped rather than guessed into paths.
	return ""
}
