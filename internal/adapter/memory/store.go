// Package memory holds the snapshot the HTTP API serves.
package memory

import (
	"context"
	"sync"

	"github.com/couchcryptid/quake-map-etl/internal/domain"
)

// Store keeps the most recent snapshot. Loads replace it whole, so readers
// never see a mix of two cycles.
type Store struct {
	mu     sync.RWMutex
	snap   domain.Snapshot
	loaded bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Name identifies the store in logs and metrics.
func (s *Store) Name() string { return "memory" }

// LoadSnapshot replaces the current snapshot.
func (s *Store) LoadSnapshot(_ context.Context, snap domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.loaded = true
	return nil
}

// Current returns the latest snapshot and whether one has been loaded.
func (s *Store) Current() (domain.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.loaded
}
