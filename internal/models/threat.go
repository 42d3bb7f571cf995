// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

// Package models defines the wire-level data structures shared by the
// ingestion pipeline, the bounded store, and the API layer.
package models

// Risk categories assigned per feed. The set is closed: a feed's risk tag is
// fixed in configuration and stamped onto every Point and Flow it produces.
const (
	RiskBotnetC2        = "botnet-c2"
	RiskCompromisedHost = "compromised-host"
	RiskAbusiveSource   = "abusive-source"
)

// ValidRisk reports whether tag is one of the known risk categories.
func ValidRisk(tag string) bool {
	switch tag {
	case RiskBotnetC2, RiskCompromisedHost, RiskAbusiveSource:
		return true
	}
	return false
}

// Point is one observed malicious or abusive IP with resolved geography.
// Points are immutable once appended to the store. Repeated sightings of the
// same IP produce repeated Points; the store is an event log, not a set.
type Point struct {
	IP        string  `json:"ip"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Country   string  `json:"country,omitempty"`
	Source    string  `json:"source"`
	Risk      string  `json:"risk"`
	FirstSeen int64   `json:"first_seen"` // epoch seconds
}

// Flow is a directed edge from an observed attacker to a monitored target.
// Both endpoints always carry resolved coordinates; a Flow is never built
// from an unresolved IP.
type Flow struct {
	SrcIP  string  `json:"src_ip"`
	SrcLat float64 `json:"src_lat"`
	SrcLon float64 `json:"src_lon"`
	DstIP  string  `json:"dst_ip"`
	DstLat float64 `json:"dst_lat"`
	DstLon float64 `json:"dst_lon"`
	TS     int64   `json:"ts"` // epoch seconds, cycle start time
	Risk   string  `json:"risk"`
}

// Target is a statically configured monitored endpoint. Targets are not
// derived from feeds; their geography is resolved lazily and cached like any
// other IP.
type Target struct {
	IP   string `json:"ip"`
	Name string `json:"name"`
}

// Snapshot is the full retained window of Points and Flows as of a single
// consistent instant, served by the snapshot pull endpoint.
type Snapshot struct {
	Points []Point `json:"points"`
	Flows  []Flow  `json:"flows"`
}

// Delta carries items appended since a subscriber's last observation. Empty
// slices are omitted from the wire format so a delta never contains an empty
// array.
type Delta struct {
	Points []Point `json:"points,omitempty"`
	Flows  []Flow  `json:"flows,omitempty"`
}

// Empty reports whether the delta carries no new items.
func (d Delta) Empty() bool {
	return len(d.Points) == 0 && len(d.Flows) == 0
}
