// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

// Package api exposes the HTTP surface: the snapshot endpoint, the websocket
// delta stream, health, and Prometheus metrics.
package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/threatcanvas/threatcanvas/internal/config"
	"github.com/threatcanvas/threatcanvas/internal/geo"
	"github.com/threatcanvas/threatcanvas/internal/logging"
	"github.com/threatcanvas/threatcanvas/internal/models"
	"github.com/threatcanvas/threatcanvas/internal/store"
	"github.com/threatcanvas/threatcanvas/internal/stream"
)

// registerTimeout bounds how long a new stream connection waits for the hub
// to accept it.
const registerTimeout = 3 * time.Second

// CycleTracker reports when ingestion last completed a cycle.
type CycleTracker interface {
	LastCycleTime() time.Time
}

// Handler serves all HTTP endpoints.
type Handler struct {
	cfg       *config.Config
	store     *store.Store
	resolver  *geo.Resolver
	hub       *stream.Hub
	ingest    CycleTracker
	startTime time.Time
}

// NewHandler wires a handler over its collaborators.
func NewHandler(cfg *config.Config, st *store.Store, resolver *geo.Resolver, hub *stream.Hub, ingest CycleTracker) *Handler {
	return &Handler{
		cfg:       cfg,
		store:     st,
		resolver:  resolver,
		hub:       hub,
		ingest:    ingest,
		startTime: time.Now(),
	}
}

// Data returns the full retained window of points and flows.
func (h *Handler) Data(w http.ResponseWriter, r *http.Request) {
	snapshot, _ := h.store.Snapshot()

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "ok",
		Data:   snapshot,
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// Health reports liveness plus basic operational counters. It returns 200 as
// long as the process is serving; an empty store is a normal state during
// warm-up.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	points, flows := h.store.Counts()

	var lastCycle *time.Time
	if h.ingest != nil {
		if t := h.ingest.LastCycleTime(); !t.IsZero() {
			lastCycle = &t
		}
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "ok",
		Data: models.HealthStatus{
			OK:           true,
			Points:       points,
			Flows:        flows,
			GeoCacheSize: h.resolver.CacheSize(),
			Subscribers:  h.hub.GetSubscriberCount(),
			LastCycle:    lastCycle,
			Uptime:       time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}

// Stream upgrades the connection and hands it to a delta subscriber.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("stream connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Stream service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	sub := stream.NewSubscriber(h.hub, conn, h.store, h.cfg.Stream.TickInterval, h.cfg.Stream.KeepAliveInterval)

	// Registration must not hang the handler goroutine if the hub loop is
	// down (e.g. mid-restart under supervision); fail closed instead.
	select {
	case h.hub.Register <- sub:
	case <-r.Context().Done():
		_ = conn.Close()
		return
	case <-time.After(registerTimeout):
		logging.Error().Msg("stream connection rejected: hub registration timed out")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "stream unavailable"),
			time.Now().Add(time.Second))
		_ = conn.Close()
		return
	}
	sub.Start()
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkStreamOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkStreamOrigin validates the Origin header against the configured CORS
// origins. Absent Origin (non-browser clients) is allowed.
func (h *Handler) checkStreamOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.cfg.Server.CORSOrigins {
		if allowed == "*" {
			return true
		}
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}

	// Same-origin requests carry an Origin matching the Host.
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("stream connection rejected: origin not allowed")
	return false
}
