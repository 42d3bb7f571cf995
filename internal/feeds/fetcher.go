// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/threatcanvas/threatcanvas/internal/metrics"
)

// maxFeedBytes caps how much of a feed body is read. Public blocklists are a
// few MB at most; anything larger is truncated rather than buffered whole.
const maxFeedBytes = 32 << 20 // 32 MB

// Fetcher retrieves raw feed content over HTTP with a bounded timeout.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the feed body. A non-2xx status is an error; the caller
// treats any error as "skip this feed for this cycle".
func (f *Fetcher) Fetch(ctx context.Context, feed Feed) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for feed %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "threatcanvas/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.FeedFetchTotal.WithLabelValues(feed.Name, "network_error").Inc()
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.FeedFetchTotal.WithLabelValues(feed.Name, "http_error").Inc()
		return nil, fmt.Errorf("feed %s returned status %d", feed.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		metrics.FeedFetchTotal.WithLabelValues(feed.Name, "network_error").Inc()
		return nil, fmt.Errorf("failed to read feed %s body: %w", feed.Name, err)
	}
	metrics.FeedFetchTotal.WithLabelValues(feed.Name, "ok").Inc()
	return body, nil
}
