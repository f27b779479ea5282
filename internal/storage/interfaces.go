package storage

import (
	"context"

	"uniswap-pool-indexer/internal/domain"
)

// KeyCount pairs a natural key with its row count; used by duplicate
// detection.
type KeyCount struct {
	TxHash   string
	LogIndex uint
	Count    int64
}

// RawEventStore provides access to the raw_events table. Writes are
// idempotent: a row whose (tx_hash, log_index) already exists is silently
// absorbed, so redundant delivery has no effect.
type RawEventStore interface {
	// Insert upserts a valued event by natural key, ignoring duplicates.
	Insert(ctx context.Context, e *domain.ValuedEvent) error

	// SwapsInRange retrieves swap events with block timestamp in
	// [start, end), ordered ascending by time.
	SwapsInRange(ctx context.Context, start, end int64) ([]*domain.ValuedEvent, error)

	// AllAscending retrieves every stored event ordered ascending by
	// block timestamp. Used by the user-stats resync.
	AllAscending(ctx context.Context) ([]*domain.ValuedEvent, error)

	// SwapsByBlockOrder retrieves swap events ordered ascending by block
	// number, bounded to limit rows (0 means no bound). Used by the
	// gap-detection and ordering integrity checks.
	SwapsByBlockOrder(ctx context.Context, limit int) ([]*domain.ValuedEvent, error)

	// DuplicateKeys returns natural keys with more than one row. A
	// non-empty result indicates an upstream key-constraint failure.
	DuplicateKeys(ctx context.Context) ([]KeyCount, error)

	// SwapCountsBySender counts raw swap rows per sender address.
	SwapCountsBySender(ctx context.Context) (map[string]int64, error)

	// PricedSwapTimestamps returns block timestamps of swaps that carry
	// a positive price, ascending.
	PricedSwapTimestamps(ctx context.Context) ([]int64, error)
}

// PriceHistoryStore provides access to price_history, one point per priced
// swap, upserted by timestamp.
type PriceHistoryStore interface {
	// Upsert inserts or overwrites the point keyed by its timestamp.
	Upsert(ctx context.Context, p *domain.PriceHistoryPoint) error

	// InRange retrieves points with timestamp in [start, end), ascending.
	InRange(ctx context.Context, start, end int64) ([]*domain.PriceHistoryPoint, error)

	// All retrieves every point ascending by timestamp.
	All(ctx context.Context) ([]*domain.PriceHistoryPoint, error)
}

// SnapshotStore provides access to pool_snapshots.
type SnapshotStore interface {
	// Upsert inserts or overwrites the snapshot keyed by snapshot_time.
	Upsert(ctx context.Context, s *domain.PoolSnapshot) error

	// Latest retrieves the most recent snapshot. Returns ErrNotFound
	// when no snapshot exists.
	Latest(ctx context.Context) (*domain.PoolSnapshot, error)
}

// HourlyStatsStore provides access to hourly_stats. Buckets are recomputed
// wholesale and overwritten on conflict.
type HourlyStatsStore interface {
	Upsert(ctx context.Context, s *domain.HourlyStats) error

	// Get retrieves the bucket starting at bucketStart. Returns
	// ErrNotFound when absent.
	Get(ctx context.Context, bucketStart int64) (*domain.HourlyStats, error)

	// InRange retrieves buckets with start in [start, end), ascending.
	InRange(ctx context.Context, start, end int64) ([]*domain.HourlyStats, error)
}

// DailyStatsStore provides access to daily_stats.
type DailyStatsStore interface {
	Upsert(ctx context.Context, s *domain.DailyStats) error

	// Get retrieves the bucket starting at bucketStart. Returns
	// ErrNotFound when absent.
	Get(ctx context.Context, bucketStart int64) (*domain.DailyStats, error)
}

// UserStatsStore provides access to user_stats, one row per account.
type UserStatsStore interface {
	// Merge applies an incoming contribution row with field-specific
	// merge semantics: counts add, largest takes the greater value,
	// first/last take earlier/later, the LP flag ORs, and user_type
	// follows the classification priority (LP sticky, incoming WHALE
	// overrides non-LP, anything else only fills an unset type). The
	// merge executes as a single conditional upsert so concurrent
	// updates to one address cannot lose increments.
	Merge(ctx context.Context, s *domain.UserStats) error

	// Replace overwrites the row regardless of existing values. Used by
	// the full-history resync, never on the hot path.
	Replace(ctx context.Context, s *domain.UserStats) error

	// Get retrieves stats for an address. Returns ErrNotFound when the
	// address has never transacted.
	Get(ctx context.Context, address string) (*domain.UserStats, error)

	// All retrieves every row, ordered by address.
	All(ctx context.Context) ([]*domain.UserStats, error)
}

// IntegrityStore is the append-only audit log of integrity check runs.
type IntegrityStore interface {
	Insert(ctx context.Context, r *domain.IntegrityCheckResult) error
}

// EventMetricStore persists per-event latency metrics in batches.
type EventMetricStore interface {
	InsertBatch(ctx context.Context, metrics []*domain.EventMetric) error
}
