package postgres

import (
	"context"
	"fmt"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Upsert inserts or overwrites the snapshot keyed by snapshot_time.
func (s *SnapshotStore) Upsert(ctx context.Context, snap *domain.PoolSnapshot) error {
	query := `
		INSERT INTO pool_snapshots (
			snapshot_time, block_number, sqrt_price_x96, tick, liquidity,
			price, balance0, balance1, tvl_usd,
			volume_24h_usd, fees_24h_usd, tx_count_24h
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (snapshot_time) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			sqrt_price_x96 = EXCLUDED.sqrt_price_x96,
			tick = EXCLUDED.tick,
			liquidity = EXCLUDED.liquidity,
			price = EXCLUDED.price,
			balance0 = EXCLUDED.balance0,
			balance1 = EXCLUDED.balance1,
			tvl_usd = EXCLUDED.tvl_usd,
			volume_24h_usd = EXCLUDED.volume_24h_usd,
			fees_24h_usd = EXCLUDED.fees_24h_usd,
			tx_count_24h = EXCLUDED.tx_count_24h
	`

	_, err := s.pool.Exec(ctx, query,
		snap.SnapshotTime,
		snap.BlockNumber,
		snap.SqrtPriceX96,
		snap.Tick,
		snap.Liquidity,
		snap.Price,
		snap.Balance0,
		snap.Balance1,
		snap.TVLUSD,
		snap.Volume24hUSD,
		snap.Fees24hUSD,
		snap.TxCount24h,
	)
	if err != nil {
		return fmt.Errorf("upsert pool snapshot: %w", err)
	}
	return nil
}

// Latest retrieves the most recent snapshot.
func (s *SnapshotStore) Latest(ctx context.Context) (*domain.PoolSnapshot, error) {
	query := `
		SELECT snapshot_time, block_number, sqrt_price_x96::text, tick, liquidity::text,
		       price, balance0, balance1, tvl_usd,
		       volume_24h_usd, fees_24h_usd, tx_count_24h
		FROM pool_snapshots
		ORDER BY snapshot_time DESC
		LIMIT 1
	`

	var snap domain.PoolSnapshot
	err := s.pool.QueryRow(ctx, query).Scan(
		&snap.SnapshotTime,
		&snap.BlockNumber,
		&snap.SqrtPriceX96,
		&snap.Tick,
		&snap.Liquidity,
		&snap.Price,
		&snap.Balance0,
		&snap.Balance1,
		&snap.TVLUSD,
		&snap.Volume24hUSD,
		&snap.Fees24hUSD,
		&snap.TxCount24h,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}

	return &snap, nil
}
