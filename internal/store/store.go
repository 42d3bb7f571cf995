// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

// Package store implements the bounded in-memory retention of Points and
// Flows: two fixed-capacity, insertion-ordered sequences under a single
// mutex, with oldest-first eviction on overflow.
//
// The store is the only shared state between the ingestion orchestrator (the
// sole writer) and the delta stream subscribers (readers). All operations
// run in O(batch size), never O(store size), so the single coarse lock is
// sufficient. The lock is never held across I/O.
package store

import (
	"sync"

	"github.com/threatcanvas/threatcanvas/internal/metrics"
	"github.com/threatcanvas/threatcanvas/internal/models"
)

// Cursor marks a subscriber's position in both sequences. It counts items
// ever appended, not buffer indices, so advancing it is immune to eviction.
// The zero Cursor observes the entire retained window on its first delta.
type Cursor struct {
	Points uint64
	Flows  uint64
}

// Store holds the bounded Point and Flow sequences.
type Store struct {
	mu     sync.Mutex
	points ring[models.Point]
	flows  ring[models.Flow]
}

// New creates a Store with the given fixed capacities.
func New(pointCap, flowCap int) *Store {
	return &Store{
		points: newRing[models.Point](pointCap),
		flows:  newRing[models.Flow](flowCap),
	}
}

// AppendPoints appends a batch of points in order, evicting oldest points
// once the capacity is reached.
func (s *Store) AppendPoints(pts []models.Point) {
	if len(pts) == 0 {
		return
	}
	s.mu.Lock()
	evicted := s.points.append(pts)
	n := s.points.n
	s.mu.Unlock()

	if evicted > 0 {
		metrics.StoreEvictions.WithLabelValues("point").Add(float64(evicted))
	}
	metrics.StorePoints.Set(float64(n))
}

// AppendFlows appends a batch of flows in order, evicting oldest flows once
// the capacity is reached.
func (s *Store) AppendFlows(fls []models.Flow) {
	if len(fls) == 0 {
		return
	}
	s.mu.Lock()
	evicted := s.flows.append(fls)
	n := s.flows.n
	s.mu.Unlock()

	if evicted > 0 {
		metrics.StoreEvictions.WithLabelValues("flow").Add(float64(evicted))
	}
	metrics.StoreFlows.Set(float64(n))
}

// Snapshot returns copies of both retained windows as of a single instant,
// together with the cursor matching that instant.
func (s *Store) Snapshot() (models.Snapshot, Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.Snapshot{
			Points: s.points.window(),
			Flows:  s.flows.window(),
		}, Cursor{
			Points: s.points.seq,
			Flows:  s.flows.seq,
		}
}

// DeltaSince returns the items appended after the cursor in both sequences,
// read under one lock acquisition so the delta is prefix-consistent, and the
// advanced cursor. A cursor that fell behind the retained window by more
// than the capacity silently skips the evicted items.
func (s *Store) DeltaSince(c Cursor) (models.Delta, Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pts, pseq := s.points.since(c.Points)
	fls, fseq := s.flows.since(c.Flows)
	return models.Delta{Points: pts, Flows: fls}, Cursor{Points: pseq, Flows: fseq}
}

// Counts returns the current retained lengths of both sequences.
func (s *Store) Counts() (points, flows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points.n, s.flows.n
}
