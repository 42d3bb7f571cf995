// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package geo

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeProvider resolves a fixed set of IPs and records what it was asked.
type fakeProvider struct {
	name      string
	available bool
	known     map[string]Entry
	err       error
	asked     [][]string
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) Resolve(_ context.Context, ips []string) (map[string]Entry, error) {
	f.asked = append(f.asked, append([]string(nil), ips...))
	got := make(map[string]Entry)
	for _, ip := range ips {
		if e, ok := f.known[ip]; ok {
			got[ip] = e
		}
	}
	return got, f.err
}

func entryAt(lat float64) Entry {
	return Entry{Lat: lat, Lon: lat, Country: "X", ResolvedAt: time.Now()}
}

func TestResolverCacheFirst(t *testing.T) {
	t.Parallel()

	cache := NewCache(10, time.Hour)
	cache.Set("1.1.1.1", entryAt(1))
	p := &fakeProvider{name: "fake", available: true, known: map[string]Entry{}}
	r := NewResolver(cache, p)

	got, err := r.Resolve(context.Background(), []string{"1.1.1.1"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Resolve() returned %d entries, want 1", len(got))
	}
	if len(p.asked) != 0 {
		t.Errorf("provider was queried for a cached IP: %v", p.asked)
	}
}

func TestResolverQueriesProviderForUnknown(t *testing.T) {
	t.Parallel()

	cache := NewCache(10, time.Hour)
	p := &fakeProvider{
		name: "fake", available: true,
		known: map[string]Entry{"2.2.2.2": entryAt(2)},
	}
	r := NewResolver(cache, p)

	got, err := r.Resolve(context.Background(), []string{"2.2.2.2", "3.3.3.3"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Resolve() returned %d entries, want 1", len(got))
	}
	if _, ok := got["3.3.3.3"]; ok {
		t.Error("unresolvable IP present in result")
	}

	// Resolved IPs land in the cache.
	if _, ok := cache.Lookup("2.2.2.2"); !ok {
		t.Error("resolved IP not cached")
	}
}

func TestResolverProviderOrder(t *testing.T) {
	t.Parallel()

	cache := NewCache(10, time.Hour)
	first := &fakeProvider{
		name: "first", available: true,
		known: map[string]Entry{"2.2.2.2": entryAt(2)},
	}
	second := &fakeProvider{
		name: "second", available: true,
		known: map[string]Entry{"2.2.2.2": entryAt(99), "3.3.3.3": entryAt(3)},
	}
	r := NewResolver(cache, first, second)

	got, err := r.Resolve(context.Background(), []string{"2.2.2.2", "3.3.3.3"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got["2.2.2.2"].Lat != 2 {
		t.Errorf("first provider's answer was overridden: %+v", got["2.2.2.2"])
	}
	if got["3.3.3.3"].Lat != 3 {
		t.Errorf("second provider did not fill the gap: %+v", got["3.3.3.3"])
	}
	// Second provider only sees what the first could not place.
	if len(second.asked) != 1 || len(second.asked[0]) != 1 || second.asked[0][0] != "3.3.3.3" {
		t.Errorf("second provider asked = %v, want [[3.3.3.3]]", second.asked)
	}
}

func TestResolverSkipsUnavailableProviders(t *testing.T) {
	t.Parallel()

	cache := NewCache(10, time.Hour)
	down := &fakeProvider{name: "down", available: false, known: map[string]Entry{"2.2.2.2": entryAt(2)}}
	r := NewResolver(cache, down)

	got, err := r.Resolve(context.Background(), []string{"2.2.2.2"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("unavailable provider produced entries: %v", got)
	}
	if len(down.asked) != 0 {
		t.Error("unavailable provider was queried")
	}
}

func TestResolverProviderErrorIsNotFatal(t *testing.T) {
	t.Parallel()

	cache := NewCache(10, time.Hour)
	flaky := &fakeProvider{
		name: "flaky", available: true,
		known: map[string]Entry{"2.2.2.2": entryAt(2)},
		err:   errors.New("upstream 429"),
	}
	backup := &fakeProvider{
		name: "backup", available: true,
		known: map[string]Entry{"3.3.3.3": entryAt(3)},
	}
	r := NewResolver(cache, flaky, backup)

	got, err := r.Resolve(context.Background(), []string{"2.2.2.2", "3.3.3.3"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	// Partial results from the failing provider are kept, the rest falls
	// through to the next provider.
	if got["2.2.2.2"].Lat != 2 || got["3.3.3.3"].Lat != 3 {
		t.Errorf("Resolve() = %v", got)
	}
}
