// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package models

import "time"

// APIResponse is the standard envelope for all JSON API responses.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError represents a structured error payload.
//
// Code is machine-readable (e.g. "METHOD_NOT_ALLOWED"); Message is for
// humans.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is the health probe payload. Reading it has no side effects;
// the counts reflect the retained windows and geo cache at probe time.
type HealthStatus struct {
	OK           bool       `json:"ok"`
	Points       int        `json:"points"`
	Flows        int        `json:"flows"`
	GeoCacheSize int        `json:"geo_cache_size"`
	Subscribers  int        `json:"subscribers"`
	LastCycle    *time.Time `json:"last_cycle,omitempty"`
	Uptime       float64    `json:"uptime_seconds"`
}
