// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

// Package stream delivers incremental map updates to websocket subscribers.
// Each subscriber carries its own store cursor and is paced by its own pump,
// so a slow consumer can never stall the ingest path or other subscribers.
package stream

import (
	"context"
	"sort"
	"sync"

	"github.com/threatcanvas/threatcanvas/internal/logging"
	"github.com/threatcanvas/threatcanvas/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the shutdown deadline passed.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types written to subscribers.
const (
	MessageTypeDelta = "delta"
	MessageTypePing  = "ping"
)

// Message is the envelope for every frame written to a subscriber.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Hub maintains the set of active subscribers. Unlike a broadcast hub it
// never pushes payloads itself; subscribers pull deltas from the store on
// their own cadence. The hub only tracks membership and closes everyone on
// shutdown.
type Hub struct {
	subscribers map[*Subscriber]bool
	Register    chan *Subscriber
	Unregister  chan *Subscriber
	mu          sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		Register:    make(chan *Subscriber),
		Unregister:  make(chan *Subscriber),
		subscribers: make(map[*Subscriber]bool),
	}
}

// RunWithContext runs the membership loop until the context is canceled.
// Designed for suture supervision: on cancellation every subscriber is
// closed so a supervisor restart never leaves orphaned connections.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Shutdown wins over lifecycle events when both are ready.
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case sub := <-h.Register:
			h.mu.Lock()
			h.subscribers[sub] = true
			total := len(h.subscribers)
			h.mu.Unlock()
			metrics.StreamSubscribers.Set(float64(total))
			logging.Info().Int("total_subscribers", total).Msg("stream subscriber connected")

		case sub := <-h.Unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				sub.closeOnce()
			}
			total := len(h.subscribers)
			h.mu.Unlock()
			metrics.StreamSubscribers.Set(float64(total))
			logging.Info().Int("total_subscribers", total).Msg("stream subscriber disconnected")
		}
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	count := h.GetSubscriberCount()
	h.closeAllSubscribers()

	logging.Info().
		Str("component", "stream-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("subscribers_closed", count).
		Msg("stream hub stopped")
}

func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllSubscribers closes every subscriber in ID order so shutdown is
// reproducible.
func (h *Hub) closeAllSubscribers() {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := make([]*Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	for _, sub := range subs {
		sub.closeOnce()
		delete(h.subscribers, sub)
	}
	metrics.StreamSubscribers.Set(0)
}

// GetSubscriberCount returns the number of connected subscribers.
func (h *Hub) GetSubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
