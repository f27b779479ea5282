package memory

import (
	"context"
	"sort"
	"sync"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// PriceHistoryStore is an in-memory implementation of storage.PriceHistoryStore.
type PriceHistoryStore struct {
	mu     sync.RWMutex
	points map[int64]*domain.PriceHistoryPoint
}

// NewPriceHistoryStore creates a new in-memory price history store.
func NewPriceHistoryStore() *PriceHistoryStore {
	return &PriceHistoryStore{points: make(map[int64]*domain.PriceHistoryPoint)}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// Upsert inserts or overwrites the point keyed by timestamp.
func (s *PriceHistoryStore) Upsert(_ context.Context, p *domain.PriceHistoryPoint) error {
	if p == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	s.points[p.Timestamp] = &cp
	return nil
}

// InRange retrieves points with timestamp in [start, end), ascending.
func (s *PriceHistoryStore) InRange(_ context.Context, start, end int64) ([]*domain.PriceHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.PriceHistoryPoint
	for ts, p := range s.points {
		if ts >= start && ts < end {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

// All retrieves every point ascending by timestamp.
func (s *PriceHistoryStore) All(_ context.Context) ([]*domain.PriceHistoryPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.PriceHistoryPoint, 0, len(s.points))
	for _, p := range s.points {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}
