package memory

import (
	"context"
	"sort"
	"sync"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// HourlyStatsStore is an in-memory implementation of storage.HourlyStatsStore.
type HourlyStatsStore struct {
	mu      sync.RWMutex
	buckets map[int64]*domain.HourlyStats
}

// NewHourlyStatsStore creates a new in-memory hourly stats store.
func NewHourlyStatsStore() *HourlyStatsStore {
	return &HourlyStatsStore{buckets: make(map[int64]*domain.HourlyStats)}
}

// Compile-time interface check.
var _ storage.HourlyStatsStore = (*HourlyStatsStore)(nil)

// Upsert inserts or overwrites the bucket row.
func (s *HourlyStatsStore) Upsert(_ context.Context, h *domain.HourlyStats) error {
	if h == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *h
	s.buckets[h.BucketStart] = &cp
	return nil
}

// Get retrieves the bucket starting at bucketStart.
func (s *HourlyStatsStore) Get(_ context.Context, bucketStart int64) (*domain.HourlyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.buckets[bucketStart]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

// InRange retrieves buckets with start in [start, end), ascending.
func (s *HourlyStatsStore) InRange(_ context.Context, start, end int64) ([]*domain.HourlyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.HourlyStats
	for bucketStart, h := range s.buckets {
		if bucketStart >= start && bucketStart < end {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BucketStart < out[j].BucketStart })
	return out, nil
}

// DailyStatsStore is an in-memory implementation of storage.DailyStatsStore.
type DailyStatsStore struct {
	mu      sync.RWMutex
	buckets map[int64]*domain.DailyStats
}

// NewDailyStatsStore creates a new in-memory daily stats store.
func NewDailyStatsStore() *DailyStatsStore {
	return &DailyStatsStore{buckets: make(map[int64]*domain.DailyStats)}
}

// Compile-time interface check.
var _ storage.DailyStatsStore = (*DailyStatsStore)(nil)

// Upsert inserts or overwrites the bucket row.
func (s *DailyStatsStore) Upsert(_ context.Context, d *domain.DailyStats) error {
	if d == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *d
	s.buckets[d.BucketStart] = &cp
	return nil
}

// Get retrieves the bucket starting at bucketStart.
func (s *DailyStatsStore) Get(_ context.Context, bucketStart int64) (*domain.DailyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.buckets[bucketStart]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *d
	return &cp, nil
}
