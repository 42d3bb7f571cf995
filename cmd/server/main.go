// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

// Package main is the entry point for the Threatcanvas server.
//
// Threatcanvas periodically pulls public threat-intelligence feeds, samples
// and geolocates the listed attacker IPs, and serves the resulting points
// and attack flows to map frontends over a REST snapshot endpoint and a
// websocket delta stream.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered load (defaults, YAML file, env vars)
//  2. Store: bounded in-memory retention window for points and flows
//  3. Geolocation: TTL cache plus local MMDB and ip-api.com providers
//  4. Ingest Manager: periodic feed fetch cycle
//  5. Stream Hub: websocket delta subscribers
//  6. HTTP Server: REST API, health, and Prometheus metrics
//
// All long-running components run under a suture supervision tree.
//
// # Configuration
//
// Koanf v2 with layered sources (highest priority wins):
//   - Environment variables (HTTP_PORT, INGEST_INTERVAL, GEO_MMDB_PATH, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// Feed and target lists are YAML-only; the defaults cover three public
// feeds that need no API keys.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: the listener
// stops accepting connections, in-flight requests drain (10s timeout), the
// ingest loop finishes its cycle, and all stream subscribers are closed.
//
// # Example Usage
//
//	export HTTP_PORT=8080
//	export INGEST_INTERVAL=5m
//	./threatcanvas
//
// With a local GeoLite2 database (skips ip-api.com for IPs it can place):
//
//	export GEO_MMDB_PATH=/data/GeoLite2-City.mmdb
//	./threatcanvas
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/threatcanvas/threatcanvas/internal/api"
	"github.com/threatcanvas/threatcanvas/internal/config"
	"github.com/threatcanvas/threatcanvas/internal/feeds"
	"github.com/threatcanvas/threatcanvas/internal/geo"
	"github.com/threatcanvas/threatcanvas/internal/ingest"
	"github.com/threatcanvas/threatcanvas/internal/logging"
	"github.com/threatcanvas/threatcanvas/internal/store"
	"github.com/threatcanvas/threatcanvas/internal/stream"
	"github.com/threatcanvas/threatcanvas/internal/supervisor"
	"github.com/threatcanvas/threatcanvas/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Int("feeds", len(cfg.Feeds)).
		Int("targets", len(cfg.Targets)).
		Dur("interval", cfg.Ingest.Interval).
		Msg("Starting Threatcanvas with supervisor tree")

	st := store.New(cfg.Store.MaxPoints, cfg.Store.MaxFlows)

	cache := geo.NewCache(cfg.Geo.CacheSize, cfg.Geo.CacheTTL)
	mmdb, err := geo.NewMMDBProvider(cfg.Geo.MMDBPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open geolocation database")
	}
	defer func() {
		if err := mmdb.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing geolocation database")
		}
	}()
	ipapi := geo.NewIPAPIProvider(cfg.Geo.BatchPerMinute, cfg.Geo.RequestTimeout)
	resolver := geo.NewResolver(cache, mmdb, ipapi)

	feedList, err := cfg.BuildFeeds()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build feed list")
	}
	fetcher := feeds.NewFetcher(cfg.Ingest.FetchTimeout)

	manager, err := ingest.NewManager(ingest.Config{
		Interval:    cfg.Ingest.Interval,
		WarmupDelay: cfg.Ingest.WarmupDelay,
		GeoBudget:   cfg.Ingest.GeoBudget,
	}, st, resolver, fetcher, feedList, cfg.BuildTargets())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create ingest manager")
	}

	hub := stream.NewHub()
	handler := api.NewHandler(cfg, st, resolver, hub, manager)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.Router(handler),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: 0, // websocket connections outlive any write deadline
		IdleTimeout:  120 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(services.NewStreamHubService(hub))
	tree.AddPipelineService(services.NewIngestService(manager))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
