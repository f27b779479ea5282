package memory

import (
	"context"
	"sort"
	"sync"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// UserStatsStore is an in-memory implementation of storage.UserStatsStore.
// The merge runs under the store mutex, giving the same per-address
// atomicity the Postgres conditional upsert provides.
type UserStatsStore struct {
	mu    sync.RWMutex
	stats map[string]*domain.UserStats
}

// NewUserStatsStore creates a new in-memory user stats store.
func NewUserStatsStore() *UserStatsStore {
	return &UserStatsStore{stats: make(map[string]*domain.UserStats)}
}

// Compile-time interface check.
var _ storage.UserStatsStore = (*UserStatsStore)(nil)

// Merge applies an incoming contribution row with field-specific merge
// semantics.
func (s *UserStatsStore) Merge(_ context.Context, u *domain.UserStats) error {
	if u == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.stats[u.Address]
	if !ok {
		cp := *u
		s.stats[u.Address] = &cp
		return nil
	}

	existing.TotalTransactions += u.TotalTransactions
	existing.BuyCount += u.BuyCount
	existing.SellCount += u.SellCount
	existing.TotalVolumeUSD += u.TotalVolumeUSD
	existing.LiquidityProvidedUSD += u.LiquidityProvidedUSD
	if u.LargestTxUSD > existing.LargestTxUSD {
		existing.LargestTxUSD = u.LargestTxUSD
	}
	if u.FirstTxAt != 0 && (existing.FirstTxAt == 0 || u.FirstTxAt < existing.FirstTxAt) {
		existing.FirstTxAt = u.FirstTxAt
	}
	if u.LastTxAt > existing.LastTxAt {
		existing.LastTxAt = u.LastTxAt
	}
	existing.IsLiquidityProvider = existing.IsLiquidityProvider || u.IsLiquidityProvider
	switch {
	case existing.UserType == domain.UserTypeLP || u.UserType == domain.UserTypeLP:
		existing.UserType = domain.UserTypeLP
	case u.UserType == domain.UserTypeWhale:
		existing.UserType = domain.UserTypeWhale
	case existing.UserType == domain.UserTypeUnset:
		existing.UserType = u.UserType
	}

	return nil
}

// Replace overwrites the row regardless of existing values.
func (s *UserStatsStore) Replace(_ context.Context, u *domain.UserStats) error {
	if u == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *u
	s.stats[u.Address] = &cp
	return nil
}

// Get retrieves stats for an address.
func (s *UserStatsStore) Get(_ context.Context, address string) (*domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.stats[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// All retrieves every row, ordered by address.
func (s *UserStatsStore) All(_ context.Context) ([]*domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.UserStats, 0, len(s.stats))
	for _, u := range s.stats {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}
