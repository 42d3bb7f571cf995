// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package store

// ring is a fixed-capacity, insertion-ordered buffer with oldest-first
// eviction and O(1) amortized append. seq counts every item ever appended,
// which is what subscriber cursors are measured against: the retained window
// always covers sequence numbers (seq-n, seq].
type ring[T any] struct {
	buf  []T
	head int    // index of the oldest retained item
	n    int    // number of retained items, n <= len(buf)
	seq  uint64 // total items ever appended
}

func newRing[T any](capacity int) ring[T] {
	return ring[T]{buf: make([]T, capacity)}
}

// append adds items in order, evicting oldest entries once the buffer is
// full. Returns the number of evicted items.
func (r *ring[T]) append(items []T) int {
	capacity := len(r.buf)
	if capacity == 0 {
		r.seq += uint64(len(items))
		return len(items)
	}

	// A batch larger than the capacity can only ever retain its tail.
	src := items
	if len(src) > capacity {
		src = src[len(src)-capacity:]
	}

	evicted := r.n + len(src) - capacity
	if evicted < 0 {
		evicted = 0
	}

	for _, it := range src {
		tail := (r.head + r.n) % capacity
		if r.n == capacity {
			r.buf[r.head] = it
			r.head = (r.head + 1) % capacity
		} else {
			r.buf[tail] = it
			r.n++
		}
	}

	r.seq += uint64(len(items))
	// Items skipped because the batch exceeded capacity count as evicted too.
	return evicted + (len(items) - len(src))
}

// window returns a copy of the retained items, oldest first.
func (r *ring[T]) window() []T {
	out := make([]T, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// since returns a copy of the items appended after cursor, oldest first, and
// the new cursor position. A cursor that has fallen behind the retained
// window is clamped to the window start: items evicted in the meantime are
// silently skipped, which is the documented gap mode for slow subscribers.
func (r *ring[T]) since(cursor uint64) ([]T, uint64) {
	if cursor >= r.seq {
		return nil, r.seq
	}
	missed := r.seq - cursor
	if missed > uint64(r.n) {
		missed = uint64(r.n)
	}
	count := int(missed)
	out := make([]T, count)
	start := r.head + r.n - count
	for i := 0; i < count; i++ {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out, r.seq
}
