package memory

import (
	"context"
	"sync"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// IntegrityStore is an in-memory implementation of storage.IntegrityStore.
type IntegrityStore struct {
	mu      sync.RWMutex
	results []*domain.IntegrityCheckResult
}

// NewIntegrityStore creates a new in-memory integrity store.
func NewIntegrityStore() *IntegrityStore {
	return &IntegrityStore{}
}

// Compile-time interface check.
var _ storage.IntegrityStore = (*IntegrityStore)(nil)

// Insert appends a check result.
func (s *IntegrityStore) Insert(_ context.Context, r *domain.IntegrityCheckResult) error {
	if r == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	cp.Issues = append([]domain.IntegrityIssue(nil), r.Issues...)
	s.results = append(s.results, &cp)
	return nil
}

// Results returns all stored results in insertion order. Used by tests.
func (s *IntegrityStore) Results() []*domain.IntegrityCheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.IntegrityCheckResult, len(s.results))
	copy(out, s.results)
	return out
}
