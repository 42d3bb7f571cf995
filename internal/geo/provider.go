// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package geo

import "context"

// Provider performs the actual IP-to-coordinates lookups for a batch of
// addresses. Implementations may use a local database or an external API.
// A provider returns entries only for the IPs it could resolve; missing IPs
// are not an error.
type Provider interface {
	// Resolve looks up the given IPs and returns an entry per resolved IP.
	Resolve(ctx context.Context, ips []string) (map[string]Entry, error)

	// Name returns the provider name for logging and metrics.
	Name() string

	// Available reports whether the provider is configured and usable.
	Available() bool
}
