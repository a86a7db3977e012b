// Package repository holds the in-memory, read-only snapshot stores
// consumed by the optional HTTP and websocket delivery surfaces.
package repository

import (
	"sync"

	"screener-backend/internal/domain"
)

// InMemoryMoversRepository caches the latest MoversResult, swapped in
// whole at the end of each cycle.
type InMemoryMoversRepository struct {
	mu     sync.RWMutex
	latest domain.MoversResult
	has    bool
}

// NewInMemoryMoversRepository builds an empty repository.
func NewInMemoryMoversRepository() *InMemoryMoversRepository {
	return &InMemoryMoversRepository{}
}

// Save replaces the cached snapshot.
func (r *InMemoryMoversRepository) Save(result domain.MoversResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = result
	r.has = true
}

// Latest returns the cached snapshot, or false if none has been saved
// yet.
func (r *InMemoryMoversRepository) Latest() (domain.MoversResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest, r.has
}

var _ domain.MoversRepository = (*InMemoryMoversRepository)(nil)
