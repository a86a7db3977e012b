package repository

import (
	"sync"

	"screener-backend/internal/domain"
)

// InMemoryPositionsRepository caches the Strategy Engine's latest
// managed-position snapshot for read-only delivery surfaces.
type InMemoryPositionsRepository struct {
	mu     sync.RWMutex
	states []domain.ManagedPositionState
}

// NewInMemoryPositionsRepository builds an empty repository.
func NewInMemoryPositionsRepository() *InMemoryPositionsRepository {
	return &InMemoryPositionsRepository{}
}

// Publish replaces the cached position snapshot.
func (r *InMemoryPositionsRepository) Publish(states []domain.ManagedPositionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = states
}

// Snapshot returns a copy of the cached position states.
func (r *InMemoryPositionsRepository) Snapshot() []domain.ManagedPositionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ManagedPositionState, len(r.states))
	copy(out, r.states)
	return out
}

var _ domain.PositionsRepository = (*InMemoryPositionsRepository)(nil)
