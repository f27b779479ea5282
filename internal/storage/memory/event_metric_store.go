package memory

import (
	"context"
	"sync"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// EventMetricStore is an in-memory implementation of storage.EventMetricStore.
type EventMetricStore struct {
	mu      sync.RWMutex
	metrics []*domain.EventMetric
}

// NewEventMetricStore creates a new in-memory event metric store.
func NewEventMetricStore() *EventMetricStore {
	return &EventMetricStore{}
}

// Compile-time interface check.
var _ storage.EventMetricStore = (*EventMetricStore)(nil)

// InsertBatch appends a batch of metrics.
func (s *EventMetricStore) InsertBatch(_ context.Context, batch []*domain.EventMetric) error {
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range batch {
		if m == nil {
			return storage.ErrInvalidInput
		}
		cp := *m
		s.metrics = append(s.metrics, &cp)
	}
	return nil
}

// Metrics returns all stored metrics in insertion order. Used by tests.
func (s *EventMetricStore) Metrics() []*domain.EventMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.EventMetric, len(s.metrics))
	copy(out, s.metrics)
	return out
}
