// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package geo

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/oschwald/maxminddb-golang"

	"github.com/threatcanvas/threatcanvas/internal/logging"
	"github.com/threatcanvas/threatcanvas/internal/metrics"
)

// mmdbRecord maps the subset of a GeoLite2-City record we care about.
type mmdbRecord struct {
	Country struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"country"`
	Location struct {
		Latitude  float64 `maxminddb:"latitude"`
		Longitude float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// MMDBProvider resolves IPs against a local MaxMind GeoLite2-City database.
// It never touches the network, so it is tried before any remote provider
// when a database path is configured.
type MMDBProvider struct {
	reader *maxminddb.Reader
}

// NewMMDBProvider opens the database at path. An empty path yields an
// unavailable provider rather than an error so the caller can wire it
// unconditionally.
func NewMMDBProvider(path string) (*MMDBProvider, error) {
	if path == "" {
		return &MMDBProvider{}, nil
	}
	reader, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geolocation database %s: %w", path, err)
	}
	logging.Info().Str("path", path).Str("type", reader.Metadata.DatabaseType).Msg("loaded local geolocation database")
	return &MMDBProvider{reader: reader}, nil
}

// Name implements Provider.
func (p *MMDBProvider) Name() string { return "mmdb" }

// Available implements Provider.
func (p *MMDBProvider) Available() bool { return p.reader != nil }

// Close releases the underlying database file.
func (p *MMDBProvider) Close() error {
	if p.reader == nil {
		return nil
	}
	return p.reader.Close()
}

// Resolve looks up each IP locally. IPs missing from the database, or
// present without coordinates, are simply omitted from the result.
func (p *MMDBProvider) Resolve(ctx context.Context, ips []string) (map[string]Entry, error) {
	if p.reader == nil {
		return nil, fmt.Errorf("geolocation database not loaded")
	}

	got := make(map[string]Entry, len(ips))
	now := time.Now()
	for _, s := range ips {
		if err := ctx.Err(); err != nil {
			return got, err
		}
		ip := net.ParseIP(s)
		if ip == nil {
			continue
		}
		var rec mmdbRecord
		if err := p.reader.Lookup(ip, &rec); err != nil {
			continue
		}
		if rec.Location.Latitude == 0 && rec.Location.Longitude == 0 {
			continue
		}
		got[s] = Entry{
			Lat:        rec.Location.Latitude,
			Lon:        rec.Location.Longitude,
			Country:    rec.Country.Names["en"],
			ResolvedAt: now,
		}
	}
	metrics.GeoBatchRequests.WithLabelValues(p.Name(), "ok").Inc()
	return got, nil
}
