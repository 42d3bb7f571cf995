// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

// Package config loads layered configuration: built-in defaults, then an
// optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/threatcanvas/threatcanvas/internal/feeds"
	"github.com/threatcanvas/threatcanvas/internal/models"
)

// Config is the root configuration.
type Config struct {
	Server  ServerConfig       `koanf:"server"`
	Ingest  IngestConfig       `koanf:"ingest"`
	Store   StoreConfig        `koanf:"store"`
	Geo     GeoConfig          `koanf:"geo"`
	Stream  StreamConfig       `koanf:"stream"`
	Limits  RateLimitConfig    `koanf:"limits"`
	Logging LoggingConfig      `koanf:"logging"`
	Feeds   []feeds.Definition `koanf:"feeds"`
	Targets []TargetConfig     `koanf:"targets"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// IngestConfig controls the fetch cycle.
type IngestConfig struct {
	Interval     time.Duration `koanf:"interval"`
	WarmupDelay  time.Duration `koanf:"warmup_delay"`
	GeoBudget    int           `koanf:"geo_budget"`
	FetchTimeout time.Duration `koanf:"fetch_timeout"`
}

// StoreConfig bounds the in-memory retention window.
type StoreConfig struct {
	MaxPoints int `koanf:"max_points"`
	MaxFlows  int `koanf:"max_flows"`
}

// GeoConfig controls the resolver and its cache.
type GeoConfig struct {
	CacheSize      int           `koanf:"cache_size"`
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	BatchPerMinute int           `koanf:"batch_per_minute"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	MMDBPath       string        `koanf:"mmdb_path"`
}

// StreamConfig paces the delta stream.
type StreamConfig struct {
	TickInterval      time.Duration `koanf:"tick_interval"`
	KeepAliveInterval time.Duration `koanf:"keepalive_interval"`
}

// RateLimitConfig throttles API clients per IP.
type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
	Disabled bool          `koanf:"disabled"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// TargetConfig is one simulated attack destination.
type TargetConfig struct {
	IP   string `koanf:"ip"`
	Name string `koanf:"name"`
}

// defaultConfig returns the built-in defaults. They match the public-feed
// deployment that needs no API keys and no local database.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Timeout:     30 * time.Second,
			CORSOrigins: []string{"*"},
		},
		Ingest: IngestConfig{
			Interval:     5 * time.Minute,
			WarmupDelay:  2 * time.Second,
			GeoBudget:    400,
			FetchTimeout: 25 * time.Second,
		},
		Store: StoreConfig{
			MaxPoints: 1200,
			MaxFlows:  2000,
		},
		Geo: GeoConfig{
			CacheSize:      20000,
			CacheTTL:       7 * 24 * time.Hour,
			BatchPerMinute: 15,
			RequestTimeout: 15 * time.Second,
			MMDBPath:       "",
		},
		Stream: StreamConfig{
			TickInterval:      time.Second,
			KeepAliveInterval: 15 * time.Second,
		},
		Limits: RateLimitConfig{
			Requests: 100,
			Window:   time.Minute,
			Disabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Feeds: feeds.DefaultDefinitions(),
		Targets: []TargetConfig{
			{IP: "8.8.8.8", Name: "google-dns"},
			{IP: "1.1.1.1", Name: "cloudflare-dns"},
			{IP: "52.216.0.0", Name: "aws-s3"},
		},
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Ingest.Interval <= 0 {
		return fmt.Errorf("ingest.interval must be positive, got %s", c.Ingest.Interval)
	}
	if c.Ingest.GeoBudget < 1 {
		return fmt.Errorf("ingest.geo_budget must be at least 1, got %d", c.Ingest.GeoBudget)
	}
	if c.Store.MaxPoints < 1 {
		return fmt.Errorf("store.max_points must be at least 1, got %d", c.Store.MaxPoints)
	}
	if c.Store.MaxFlows < 1 {
		return fmt.Errorf("store.max_flows must be at least 1, got %d", c.Store.MaxFlows)
	}
	if c.Geo.CacheSize < 1 {
		return fmt.Errorf("geo.cache_size must be at least 1, got %d", c.Geo.CacheSize)
	}
	if c.Geo.CacheTTL <= 0 {
		return fmt.Errorf("geo.cache_ttl must be positive, got %s", c.Geo.CacheTTL)
	}
	if c.Stream.TickInterval <= 0 {
		return fmt.Errorf("stream.tick_interval must be positive, got %s", c.Stream.TickInterval)
	}
	if len(c.Feeds) == 0 {
		return fmt.Errorf("at least one feed must be configured")
	}
	if _, err := feeds.Build(c.Feeds); err != nil {
		return fmt.Errorf("invalid feed configuration: %w", err)
	}
	if len(c.Targets) == 0 {
		return fmt.Errorf("at least one target must be configured")
	}
	for _, t := range c.Targets {
		if !feeds.ValidIPv4(t.IP) {
			return fmt.Errorf("target %q has invalid IPv4 address %q", t.Name, t.IP)
		}
	}
	return nil
}

// BuildFeeds resolves the configured feed definitions.
func (c *Config) BuildFeeds() ([]feeds.Feed, error) {
	return feeds.Build(c.Feeds)
}

// BuildTargets converts the configured targets to model values.
func (c *Config) BuildTargets() []models.Target {
	out := make([]models.Target, 0, len(c.Targets))
	for _, t := range c.Targets {
		out = append(out, models.Target{IP: t.IP, Name: t.Name})
	}
	return out
}
