// Threatcanvas - Real-Time Threat Intelligence Map
// Copyright 2026 The Threatcanvas Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/threatcanvas/threatcanvas

package services

import (
	"context"
	"fmt"
)

// StartStopManager matches *ingest.Manager's lifecycle.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// IngestService wraps the ingest manager as a supervised service, adapting
// its Start/Stop lifecycle to suture's Serve pattern. The manager owns its
// goroutines internally; this wrapper only orchestrates the transitions.
type IngestService struct {
	manager StartStopManager
	name    string
}

// NewIngestService creates the wrapper.
func NewIngestService(manager StartStopManager) *IngestService {
	return &IngestService{
		manager: manager,
		name:    "ingest-manager",
	}
}

// Serve implements suture.Service. A Start failure returns immediately so
// suture applies its backoff policy.
func (s *IngestService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("ingest manager start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("ingest manager stop failed: %w", err)
	}
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *IngestService) String() string {
	return s.name
}
