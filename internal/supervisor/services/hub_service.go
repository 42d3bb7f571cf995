// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package services

import (
	"context"
)

// ContextHub matches *stream.Hub's RunWithContext without importing the
// stream package.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// StreamHubService wraps the stream hub as a supervised service. The hub's
// RunWithContext already follows the suture.Service pattern, so this only
// adds a name for logging.
type StreamHubService struct {
	hub  ContextHub
	name string
}

// NewStreamHubService creates the wrapper.
func NewStreamHubService(hub ContextHub) *StreamHubService {
	return &StreamHubService{
		hub:  hub,
		name: "stream-hub",
	}
}

// Serve implements suture.Service.
func (s *StreamHubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String identifies the service in supervisor logs.
func (s *StreamHubService) String() string {
	return s.name
}
