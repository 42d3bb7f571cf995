// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

// Package geo resolves IP addresses to geographic coordinates through a
// time-bounded, size-capped cache backed by pluggable lookup providers.
package geo

import (
	"sync"
	"time"

	"github.com/threatcanvas/threatcanvas/internal/metrics"
)

// Entry is one cached resolution result.
type Entry struct {
	Lat        float64
	Lon        float64
	Country    string
	ResolvedAt time.Time
}

// Cache is a thread-safe IP -> Entry cache with a fixed TTL and a fixed
// maximum size. Expired entries are treated as absent. When full, the
// least-recently-inserted entry is evicted; refreshing an entry re-inserts
// it at the back of the eviction queue.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheSlot
	queue   []queued // insertion order, may hold stale keys
	gen     uint64   // monotonic insertion counter
	maxSize int
	ttl     time.Duration
}

type cacheSlot struct {
	entry Entry
	gen   uint64 // matches the queued record that owns this slot
}

type queued struct {
	ip  string
	gen uint64
}

// NewCache creates a cache holding at most maxSize entries, each valid for
// ttl after insertion.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheSlot),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Lookup returns the unexpired entry for ip. An expired entry counts as a
// miss and is dropped so the next resolution cycle re-fetches it.
func (c *Cache) Lookup(ip string) (Entry, bool) {
	c.mu.RLock()
	slot, ok := c.entries[ip]
	c.mu.RUnlock()

	if !ok {
		metrics.GeoCacheMisses.Inc()
		return Entry{}, false
	}
	if time.Since(slot.entry.ResolvedAt) > c.ttl {
		c.mu.Lock()
		// Re-check: another goroutine may have refreshed it meanwhile.
		if cur, still := c.entries[ip]; still && cur.gen == slot.gen {
			delete(c.entries, ip)
		}
		c.mu.Unlock()
		metrics.GeoCacheMisses.Inc()
		return Entry{}, false
	}
	metrics.GeoCacheHits.Inc()
	return slot.entry, true
}

// Set inserts or refreshes the entry for ip and evicts the oldest entries
// if the cache is over capacity.
func (c *Cache) Set(ip string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.entries[ip] = cacheSlot{entry: e, gen: c.gen}
	c.queue = append(c.queue, queued{ip: ip, gen: c.gen})

	// Evict oldest-inserted entries. Queue records whose generation no
	// longer matches the map slot are leftovers from a refresh and are
	// simply discarded.
	for len(c.entries) > c.maxSize && len(c.queue) > 0 {
		head := c.queue[0]
		c.queue = c.queue[1:]
		if slot, ok := c.entries[head.ip]; ok && slot.gen == head.gen {
			delete(c.entries, head.ip)
		}
	}

	metrics.GeoCacheEntries.Set(float64(len(c.entries)))
}

// Len returns the current number of entries, expired ones included until
// their next lookup.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
