// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

// Package ingest drives the periodic fetch cycle: pull every configured
// feed, sample the parsed IPs against the geolocation budget, resolve
// coordinates, and append the resulting points and flows to the store.
package ingest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/threatcanvas/threatcanvas/internal/feeds"
	"github.com/threatcanvas/threatcanvas/internal/geo"
	"github.com/threatcanvas/threatcanvas/internal/logging"
	"github.com/threatcanvas/threatcanvas/internal/metrics"
	"github.com/threatcanvas/threatcanvas/internal/models"
	"github.com/threatcanvas/threatcanvas/internal/store"
)

// Config controls cycle cadence and the per-cycle geolocation budget.
type Config struct {
	// Interval between cycle starts.
	Interval time.Duration
	// WarmupDelay before the first cycle, so the HTTP listener comes up
	// before any upstream fetch begins.
	WarmupDelay time.Duration
	// GeoBudget caps how many attacker IPs a single cycle may submit for
	// geolocation. The budget is split evenly across feeds.
	GeoBudget int
}

// Manager owns the fetch cycle lifecycle.
type Manager struct {
	cfg      Config
	store    *store.Store
	resolver *geo.Resolver
	fetcher  *feeds.Fetcher
	feeds    []feeds.Feed
	targets  []models.Target

	mu        sync.RWMutex
	lastCycle time.Time
	running   bool
	stopChan  chan struct{}
	wg        sync.WaitGroup
	cycleMu   sync.Mutex
}

// NewManager wires a manager over its collaborators. feeds and targets must
// be non-empty.
func NewManager(cfg Config, st *store.Store, resolver *geo.Resolver, fetcher *feeds.Fetcher, fs []feeds.Feed, targets []models.Target) (*Manager, error) {
	if len(fs) == 0 {
		return nil, fmt.Errorf("at least one feed is required")
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one target is required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.GeoBudget <= 0 {
		cfg.GeoBudget = 400
	}
	return &Manager{
		cfg:      cfg,
		store:    st,
		resolver: resolver,
		fetcher:  fetcher,
		feeds:    fs,
		targets:  targets,
	}, nil
}

// Start launches the cycle loop. The first cycle runs after WarmupDelay,
// then every Interval.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("ingest manager is already running")
	}
	m.running = true
	// Fresh channel per run so the manager can be restarted after Stop.
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	logging.Info().
		Dur("interval", m.cfg.Interval).
		Int("feeds", len(m.feeds)).
		Int("geo_budget", m.cfg.GeoBudget).
		Msg("Starting ingest manager...")

	m.wg.Add(1)
	go m.cycleLoop(ctx)
	return nil
}

// Stop signals the loop and waits for any in-flight cycle to finish.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return fmt.Errorf("ingest manager is not running")
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info().Msg("Ingest manager stopped")
	return nil
}

// LastCycleTime returns when the most recent successful cycle completed.
// Zero until the first cycle finishes.
func (m *Manager) LastCycleTime() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCycle
}

// TriggerCycle runs one cycle immediately, serialized against the periodic
// loop.
func (m *Manager) TriggerCycle(ctx context.Context) error {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()
	return m.runOnce(ctx)
}

func (m *Manager) cycleLoop(ctx context.Context) {
	defer m.wg.Done()

	// Warm-up delay lets the listener bind before the first upstream pull.
	if m.cfg.WarmupDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-time.After(m.cfg.WarmupDelay):
		}
	}

	m.safeCycle(ctx)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Ingest loop stopping (context canceled)")
			return
		case <-m.stopChan:
			logging.Info().Msg("Ingest loop stopping (stop signal received)")
			return
		case <-ticker.C:
			m.safeCycle(ctx)
		}
	}
}

// safeCycle runs one cycle with panic containment so a malformed feed can
// never kill the loop.
func (m *Manager) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IngestCycles.WithLabelValues("panic").Inc()
			logging.Error().Interface("panic", r).Msg("Ingest cycle panicked")
		}
	}()

	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()
	if err := m.runOnce(ctx); err != nil {
		logging.Error().Err(err).Msg("Ingest cycle failed")
	}
}

// candidate is one sampled attacker IP with its feed provenance.
type candidate struct {
	ip     string
	source string
	risk   string
}

func (m *Manager) runOnce(ctx context.Context) error {
	cycleStart := time.Now()
	ts := cycleStart.Unix()

	cands := m.collect(ctx)
	if len(cands) == 0 {
		metrics.IngestCycles.WithLabelValues("empty").Inc()
		logging.Warn().Msg("Ingest cycle produced no candidate IPs")
		return nil
	}

	// One resolution pass covers attackers and targets alike. Targets are
	// cheap: after the first cycle they are cache hits.
	lookup := make([]string, 0, len(cands)+len(m.targets))
	seen := make(map[string]struct{}, len(cands)+len(m.targets))
	for _, c := range cands {
		if _, ok := seen[c.ip]; ok {
			continue
		}
		seen[c.ip] = struct{}{}
		lookup = append(lookup, c.ip)
	}
	for _, t := range m.targets {
		if _, ok := seen[t.IP]; ok {
			continue
		}
		seen[t.IP] = struct{}{}
		lookup = append(lookup, t.IP)
	}

	coords, err := m.resolver.Resolve(ctx, lookup)
	if err != nil {
		return fmt.Errorf("geolocation pass failed: %w", err)
	}

	points := make([]models.Point, 0, len(cands))
	flows := make([]models.Flow, 0, len(cands))
	for _, c := range cands {
		src, ok := coords[c.ip]
		if !ok {
			continue
		}
		points = append(points, models.Point{
			IP:        c.ip,
			Lat:       src.Lat,
			Lon:       src.Lon,
			Country:   src.Country,
			Source:    c.source,
			Risk:      c.risk,
			FirstSeen: ts,
		})

		target := m.targets[rand.IntN(len(m.targets))]
		dst, ok := coords[target.IP]
		if !ok {
			continue
		}
		flows = append(flows, models.Flow{
			SrcIP:  c.ip,
			SrcLat: src.Lat,
			SrcLon: src.Lon,
			DstIP:  target.IP,
			DstLat: dst.Lat,
			DstLon: dst.Lon,
			TS:     ts,
			Risk:   c.risk,
		})
	}

	m.store.AppendPoints(points)
	m.store.AppendFlows(flows)

	m.mu.Lock()
	m.lastCycle = time.Now()
	m.mu.Unlock()

	metrics.IngestCycles.WithLabelValues("ok").Inc()
	metrics.IngestCycleDuration.Observe(time.Since(cycleStart).Seconds())
	logging.Info().
		Int("candidates", len(cands)).
		Int("points", len(points)).
		Int("flows", len(flows)).
		Dur("duration", time.Since(cycleStart)).
		Msg("Ingest cycle completed")
	return nil
}

// collect fetches and parses every feed, then samples each feed's tail down
// to its even share of the geolocation budget. A failed feed contributes
// nothing; the cycle carries on with the rest.
func (m *Manager) collect(ctx context.Context) []candidate {
	perFeed := m.cfg.GeoBudget / len(m.feeds)
	if perFeed < 1 {
		perFeed = 1
	}

	var cands []candidate
	for _, f := range m.feeds {
		body, err := m.fetcher.Fetch(ctx, f)
		if err != nil {
			logging.Warn().Err(err).Str("feed", f.Name).Msg("Feed fetch failed, skipping this cycle")
			continue
		}

		ips := f.Parser.Parse(body)
		metrics.FeedIPsParsed.WithLabelValues(f.Name).Add(float64(len(ips)))
		if len(ips) == 0 {
			logging.Warn().Str("feed", f.Name).Msg("Feed yielded no valid IPs")
			continue
		}

		// Most feeds append newest entries at the end, so the tail is the
		// freshest slice of the list.
		if len(ips) > perFeed {
			ips = ips[len(ips)-perFeed:]
		}
		for _, ip := range ips {
			cands = append(cands, candidate{ip: ip, source: f.Name, risk: f.Risk})
		}
		logging.Debug().Str("feed", f.Name).Int("sampled", len(ips)).Msg("Feed sampled")
	}
	return cands
}
