// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package geo

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func newTestIPAPIProvider(url string) *IPAPIProvider {
	p := NewIPAPIProvider(6000, 5*time.Second) // effectively unthrottled for tests
	p.baseURL = url
	return p
}

func TestIPAPIResolveBatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var ips []string
		if err := json.NewDecoder(r.Body).Decode(&ips); err != nil {
			t.Errorf("bad request body: %v", err)
		}

		results := make([]ipAPIResult, 0, len(ips))
		for _, ip := range ips {
			if ip == "10.0.0.99" {
				results = append(results, ipAPIResult{Status: "fail", Message: "private range", Query: ip})
				continue
			}
			results = append(results, ipAPIResult{
				Status: "success", Country: "Germany", Lat: 52.52, Lon: 13.40, Query: ip,
			})
		}
		_ = json.NewEncoder(w).Encode(results)
	}))
	defer srv.Close()

	p := newTestIPAPIProvider(srv.URL)
	got, err := p.Resolve(context.Background(), []string{"1.2.3.4", "10.0.0.99", "5.6.7.8"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Resolve() returned %d entries, want 2", len(got))
	}
	if _, ok := got["10.0.0.99"]; ok {
		t.Error("failed lookup present in result")
	}
	if e := got["1.2.3.4"]; e.Country != "Germany" || e.Lat != 52.52 {
		t.Errorf("entry = %+v", e)
	}
}

func TestIPAPIResolveChunks(t *testing.T) {
	t.Parallel()

	var batchSizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ips []string
		_ = json.NewDecoder(r.Body).Decode(&ips)
		batchSizes = append(batchSizes, len(ips))

		results := make([]ipAPIResult, 0, len(ips))
		for _, ip := range ips {
			results = append(results, ipAPIResult{Status: "success", Lat: 1, Lon: 1, Query: ip})
		}
		_ = json.NewEncoder(w).Encode(results)
	}))
	defer srv.Close()

	ips := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		ips = append(ips, fmt.Sprintf("10.0.%d.%d", i/256, i%256))
	}

	p := newTestIPAPIProvider(srv.URL)
	got, err := p.Resolve(context.Background(), ips)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 150 {
		t.Errorf("Resolve() returned %d entries, want 150", len(got))
	}
	if len(batchSizes) != 2 || batchSizes[0] != 100 || batchSizes[1] != 50 {
		t.Errorf("batch sizes = %v, want [100 50]", batchSizes)
	}
}

func TestIPAPIResolveServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := newTestIPAPIProvider(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// A failed batch yields no entries but no hard error either.
	got, err := p.Resolve(ctx, []string{"1.2.3.4"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Resolve() returned %d entries after upstream failure, want 0", len(got))
	}
}
