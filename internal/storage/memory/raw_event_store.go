package memory

import (
	"context"
	"sort"
	"sync"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// rawEventKey is the natural key of a raw event.
type rawEventKey struct {
	TxHash   string
	LogIndex uint
}

// RawEventStore is an in-memory implementation of storage.RawEventStore.
type RawEventStore struct {
	mu   sync.RWMutex
	data []*domain.ValuedEvent
	keys map[rawEventKey]bool
}

// NewRawEventStore creates a new in-memory raw event store.
func NewRawEventStore() *RawEventStore {
	return &RawEventStore{
		data: make([]*domain.ValuedEvent, 0),
		keys: make(map[rawEventKey]bool),
	}
}

// Compile-time interface check.
var _ storage.RawEventStore = (*RawEventStore)(nil)

// Insert adds an event, silently absorbing natural-key duplicates.
func (s *RawEventStore) Insert(_ context.Context, e *domain.ValuedEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	key := rawEventKey{TxHash: e.TxHash.Hex(), LogIndex: e.LogIndex}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.keys[key] {
		return nil // duplicate delivery absorbed
	}

	cp := *e
	s.data = append(s.data, &cp)
	s.keys[key] = true

	return nil
}

// SwapsInRange retrieves swap events in [start, end), ascending by time.
func (s *RawEventStore) SwapsInRange(_ context.Context, start, end int64) ([]*domain.ValuedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ValuedEvent
	for _, e := range s.data {
		if e.Kind == domain.EventSwap && e.BlockTimestamp >= start && e.BlockTimestamp < end {
			cp := *e
			out = append(out, &cp)
		}
	}
	sortByTime(out)
	return out, nil
}

// AllAscending retrieves every event ascending by block timestamp.
func (s *RawEventStore) AllAscending(_ context.Context) ([]*domain.ValuedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ValuedEvent, 0, len(s.data))
	for _, e := range s.data {
		cp := *e
		out = append(out, &cp)
	}
	sortByTime(out)
	return out, nil
}

// SwapsByBlockOrder retrieves swaps ascending by block number.
func (s *RawEventStore) SwapsByBlockOrder(_ context.Context, limit int) ([]*domain.ValuedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.ValuedEvent
	for _, e := range s.data {
		if e.Kind == domain.EventSwap {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DuplicateKeys always returns nil: the key map makes duplicates
// structurally impossible in this implementation.
func (s *RawEventStore) DuplicateKeys(_ context.Context) ([]storage.KeyCount, error) {
	return nil, nil
}

// SwapCountsBySender counts swap rows per sender address.
func (s *RawEventStore) SwapCountsBySender(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, e := range s.data {
		if e.Kind == domain.EventSwap {
			counts[e.Sender.Hex()]++
		}
	}
	return counts, nil
}

// PricedSwapTimestamps returns timestamps of swaps with a positive price.
func (s *RawEventStore) PricedSwapTimestamps(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []int64
	for _, e := range s.data {
		if e.Kind == domain.EventSwap && e.Price > 0 {
			out = append(out, e.BlockTimestamp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// sortByTime orders events by (timestamp, block, log index).
func sortByTime(events []*domain.ValuedEvent) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockTimestamp != events[j].BlockTimestamp {
			return events[i].BlockTimestamp < events[j].BlockTimestamp
		}
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
}
