// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package geo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/threatcanvas/threatcanvas/internal/logging"
	"github.com/threatcanvas/threatcanvas/internal/metrics"
)

const (
	// ipAPIBatchLimit is the maximum number of IPs ip-api.com accepts per
	// batch request.
	ipAPIBatchLimit = 100

	// batchFailureBackoff is slept after a failed batch before trying the
	// next one. Failed IPs are not retried within the same resolution call.
	batchFailureBackoff = 2 * time.Second
)

// ipAPIResult is one record of the ip-api.com batch response.
type ipAPIResult struct {
	Status  string  `json:"status"` // "success" or "fail"
	Message string  `json:"message,omitempty"`
	Country string  `json:"country"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Query   string  `json:"query"` // IP address queried
}

// IPAPIProvider resolves batches of IPs against the free ip-api.com batch
// endpoint (no API key, 15 batch requests per minute). Requests are gated by
// a token-bucket limiter and wrapped in a circuit breaker so a flapping
// upstream degrades to cache-only operation instead of hammering the API.
type IPAPIProvider struct {
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]ipAPIResult]
	baseURL string
}

// NewIPAPIProvider creates an ip-api.com batch provider. batchPerMin caps
// how many batch requests may be issued per minute; timeout bounds each
// request.
func NewIPAPIProvider(batchPerMin int, timeout time.Duration) *IPAPIProvider {
	if batchPerMin <= 0 {
		batchPerMin = 15
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	cbName := "ip-api-batch"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]ipAPIResult](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("geolocation circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &IPAPIProvider{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(batchPerMin)), batchPerMin),
		breaker: cb,
		baseURL: "http://ip-api.com/batch?fields=status,message,country,lat,lon,query",
	}
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Name implements Provider.
func (p *IPAPIProvider) Name() string { return "ip-api.com" }

// Available implements Provider. ip-api.com needs no credentials.
func (p *IPAPIProvider) Available() bool { return true }

// Resolve chunks ips into batches of at most 100 and issues one POST per
// batch. A failed batch yields no entries for its IPs and is followed by a
// short backoff; it never aborts the remaining batches.
func (p *IPAPIProvider) Resolve(ctx context.Context, ips []string) (map[string]Entry, error) {
	got := make(map[string]Entry)

	for start := 0; start < len(ips); start += ipAPIBatchLimit {
		end := start + ipAPIBatchLimit
		if end > len(ips) {
			end = len(ips)
		}
		chunk := ips[start:end]

		if err := p.limiter.Wait(ctx); err != nil {
			return got, fmt.Errorf("geolocation rate limit wait canceled: %w", err)
		}

		results, err := p.breaker.Execute(func() ([]ipAPIResult, error) {
			return p.queryBatch(ctx, chunk)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				metrics.GeoBatchRequests.WithLabelValues(p.Name(), "rejected").Inc()
			} else {
				metrics.GeoBatchRequests.WithLabelValues(p.Name(), "error").Inc()
			}
			logging.Warn().Err(err).Int("batch_size", len(chunk)).Msg("geolocation batch failed, IPs stay unknown")
			if sleepErr := sleepCtx(ctx, batchFailureBackoff); sleepErr != nil {
				return got, sleepErr
			}
			continue
		}

		metrics.GeoBatchRequests.WithLabelValues(p.Name(), "ok").Inc()
		now := time.Now()
		for _, r := range results {
			if r.Status != "success" || r.Query == "" {
				continue
			}
			got[r.Query] = Entry{
				Lat:        r.Lat,
				Lon:        r.Lon,
				Country:    r.Country,
				ResolvedAt: now,
			}
		}
	}

	return got, nil
}

// queryBatch issues one batch POST and decodes the response.
func (p *IPAPIProvider) queryBatch(ctx context.Context, ips []string) ([]ipAPIResult, error) {
	body, err := json.Marshal(ips)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query ip-api.com: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ip-api.com returned status %d", resp.StatusCode)
	}

	var results []ipAPIResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode ip-api.com response: %w", err)
	}
	return results, nil
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
