// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package geo

import (
	"context"

	"github.com/threatcanvas/threatcanvas/internal/logging"
	"github.com/threatcanvas/threatcanvas/internal/metrics"
)

// Resolver fronts a chain of providers with the shared TTL cache. Providers
// are tried in order; the first one to resolve an IP wins and later
// providers only see the IPs still unknown.
type Resolver struct {
	cache     *Cache
	providers []Provider
}

// NewResolver builds a resolver over the given providers. Unavailable
// providers are filtered out up front.
func NewResolver(cache *Cache, providers ...Provider) *Resolver {
	active := make([]Provider, 0, len(providers))
	for _, p := range providers {
		if p == nil || !p.Available() {
			continue
		}
		active = append(active, p)
	}
	return &Resolver{cache: cache, providers: active}
}

// Lookup returns the cached entry for ip, if any. It never triggers a
// provider query.
func (r *Resolver) Lookup(ip string) (Entry, bool) {
	return r.cache.Lookup(ip)
}

// CacheSize reports the number of live cache entries.
func (r *Resolver) CacheSize() int {
	return r.cache.Len()
}

// Resolve returns coordinates for every IP it can, consulting the cache
// first and then each provider in turn for the remainder. IPs no provider
// can place are absent from the result; that is not an error. The returned
// map covers cached and freshly resolved IPs alike.
func (r *Resolver) Resolve(ctx context.Context, ips []string) (map[string]Entry, error) {
	resolved := make(map[string]Entry, len(ips))
	var unknown []string

	for _, ip := range ips {
		if e, ok := r.cache.Lookup(ip); ok {
			resolved[ip] = e
			continue
		}
		unknown = append(unknown, ip)
	}

	for _, p := range r.providers {
		if len(unknown) == 0 {
			break
		}
		got, err := p.Resolve(ctx, unknown)
		for ip, e := range got {
			r.cache.Set(ip, e)
			resolved[ip] = e
		}
		if err != nil {
			if ctx.Err() != nil {
				return resolved, ctx.Err()
			}
			logging.Warn().Err(err).Str("provider", p.Name()).Int("pending", len(unknown)).Msg("geolocation provider failed")
		}
		if len(got) > 0 {
			remaining := unknown[:0]
			for _, ip := range unknown {
				if _, ok := got[ip]; !ok {
					remaining = append(remaining, ip)
				}
			}
			unknown = remaining
		}
	}

	metrics.GeoCacheEntries.Set(float64(r.cache.Len()))
	return resolved, nil
}
