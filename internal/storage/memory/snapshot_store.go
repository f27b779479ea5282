package memory

import (
	"context"
	"sync"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[int64]*domain.PoolSnapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snapshots: make(map[int64]*domain.PoolSnapshot)}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Upsert inserts or overwrites the snapshot keyed by snapshot_time.
func (s *SnapshotStore) Upsert(_ context.Context, snap *domain.PoolSnapshot) error {
	if snap == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *snap
	s.snapshots[snap.SnapshotTime] = &cp
	return nil
}

// Latest retrieves the most recent snapshot.
func (s *SnapshotStore) Latest(_ context.Context) (*domain.PoolSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.PoolSnapshot
	for _, snap := range s.snapshots {
		if latest == nil || snap.SnapshotTime > latest.SnapshotTime {
			latest = snap
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	cp := *latest
	return &cp, nil
}
