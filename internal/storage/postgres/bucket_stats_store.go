package postgres

import (
	"context"
	"fmt"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// HourlyStatsStore implements storage.HourlyStatsStore using PostgreSQL.
type HourlyStatsStore struct {
	pool *Pool
}

// NewHourlyStatsStore creates a new HourlyStatsStore.
func NewHourlyStatsStore(pool *Pool) *HourlyStatsStore {
	return &HourlyStatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.HourlyStatsStore = (*HourlyStatsStore)(nil)

// Upsert inserts or overwrites the bucket row. Buckets are recomputed
// wholesale, so a conflict always overwrites every non-key field.
func (s *HourlyStatsStore) Upsert(ctx context.Context, h *domain.HourlyStats) error {
	query := `
		INSERT INTO hourly_stats (
			bucket_start, open_price, high_price, low_price, close_price,
			tx_count, buy_count, sell_count,
			volume_token0, volume_token1, volume_usd, estimated_fee,
			unique_addresses, liquidity_min, liquidity_avg, liquidity_max
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (bucket_start) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			tx_count = EXCLUDED.tx_count,
			buy_count = EXCLUDED.buy_count,
			sell_count = EXCLUDED.sell_count,
			volume_token0 = EXCLUDED.volume_token0,
			volume_token1 = EXCLUDED.volume_token1,
			volume_usd = EXCLUDED.volume_usd,
			estimated_fee = EXCLUDED.estimated_fee,
			unique_addresses = EXCLUDED.unique_addresses,
			liquidity_min = EXCLUDED.liquidity_min,
			liquidity_avg = EXCLUDED.liquidity_avg,
			liquidity_max = EXCLUDED.liquidity_max
	`

	_, err := s.pool.Exec(ctx, query,
		h.BucketStart, h.OpenPrice, h.HighPrice, h.LowPrice, h.ClosePrice,
		h.TxCount, h.BuyCount, h.SellCount,
		h.VolumeToken0, h.VolumeToken1, h.VolumeUSD, h.EstimatedFee,
		h.UniqueAddresses, h.LiquidityMin, h.LiquidityAvg, h.LiquidityMax,
	)
	if err != nil {
		return fmt.Errorf("upsert hourly stats: %w", err)
	}
	return nil
}

// Get retrieves the bucket starting at bucketStart.
func (s *HourlyStatsStore) Get(ctx context.Context, bucketStart int64) (*domain.HourlyStats, error) {
	query := `
		SELECT bucket_start, open_price, high_price, low_price, close_price,
		       tx_count, buy_count, sell_count,
		       volume_token0, volume_token1, volume_usd, estimated_fee,
		       unique_addresses, liquidity_min, liquidity_avg, liquidity_max
		FROM hourly_stats
		WHERE bucket_start = $1
	`

	var h domain.HourlyStats
	err := s.pool.QueryRow(ctx, query, bucketStart).Scan(
		&h.BucketStart, &h.OpenPrice, &h.HighPrice, &h.LowPrice, &h.ClosePrice,
		&h.TxCount, &h.BuyCount, &h.SellCount,
		&h.VolumeToken0, &h.VolumeToken1, &h.VolumeUSD, &h.EstimatedFee,
		&h.UniqueAddresses, &h.LiquidityMin, &h.LiquidityAvg, &h.LiquidityMax,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get hourly stats: %w", err)
	}
	return &h, nil
}

// InRange retrieves buckets with start in [start, end), ascending.
func (s *HourlyStatsStore) InRange(ctx context.Context, start, end int64) ([]*domain.HourlyStats, error) {
	query := `
		SELECT bucket_start, open_price, high_price, low_price, close_price,
		       tx_count, buy_count, sell_count,
		       volume_token0, volume_token1, volume_usd, estimated_fee,
		       unique_addresses, liquidity_min, liquidity_avg, liquidity_max
		FROM hourly_stats
		WHERE bucket_start >= $1 AND bucket_start < $2
		ORDER BY bucket_start ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get hourly stats by range: %w", err)
	}
	defer rows.Close()

	var out []*domain.HourlyStats
	for rows.Next() {
		var h domain.HourlyStats
		err := rows.Scan(
			&h.BucketStart, &h.OpenPrice, &h.HighPrice, &h.LowPrice, &h.ClosePrice,
			&h.TxCount, &h.BuyCount, &h.SellCount,
			&h.VolumeToken0, &h.VolumeToken1, &h.VolumeUSD, &h.EstimatedFee,
			&h.UniqueAddresses, &h.LiquidityMin, &h.LiquidityAvg, &h.LiquidityMax,
		)
		if err != nil {
			return nil, fmt.Errorf("scan hourly stats row: %w", err)
		}
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hourly stats rows: %w", err)
	}
	return out, nil
}

// DailyStatsStore implements storage.DailyStatsStore using PostgreSQL.
type DailyStatsStore struct {
	pool *Pool
}

// NewDailyStatsStore creates a new DailyStatsStore.
func NewDailyStatsStore(pool *Pool) *DailyStatsStore {
	return &DailyStatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DailyStatsStore = (*DailyStatsStore)(nil)

// Upsert inserts or overwrites the bucket row.
func (s *DailyStatsStore) Upsert(ctx context.Context, d *domain.DailyStats) error {
	query := `
		INSERT INTO daily_stats (
			bucket_start, open_price, high_price, low_price, close_price,
			tx_count, buy_count, sell_count,
			volume_token0, volume_token1, volume_usd, estimated_fee,
			unique_addresses, new_addresses, whale_tx_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (bucket_start) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			tx_count = EXCLUDED.tx_count,
			buy_count = EXCLUDED.buy_count,
			sell_count = EXCLUDED.sell_count,
			volume_token0 = EXCLUDED.volume_token0,
			volume_token1 = EXCLUDED.volume_token1,
			volume_usd = EXCLUDED.volume_usd,
			estimated_fee = EXCLUDED.estimated_fee,
			unique_addresses = EXCLUDED.unique_addresses,
			new_addresses = EXCLUDED.new_addresses,
			whale_tx_count = EXCLUDED.whale_tx_count
	`

	_, err := s.pool.Exec(ctx, query,
		d.BucketStart, d.OpenPrice, d.HighPrice, d.LowPrice, d.ClosePrice,
		d.TxCount, d.BuyCount, d.SellCount,
		d.VolumeToken0, d.VolumeToken1, d.VolumeUSD, d.EstimatedFee,
		d.UniqueAddresses, d.NewAddresses, d.WhaleTxCount,
	)
	if err != nil {
		return fmt.Errorf("upsert daily stats: %w", err)
	}
	return nil
}

// Get retrieves the bucket starting at bucketStart.
func (s *DailyStatsStore) Get(ctx context.Context, bucketStart int64) (*domain.DailyStats, error) {
	query := `
		SELECT bucket_start, open_price, high_price, low_price, close_price,
		       tx_count, buy_count, sell_count,
		       volume_token0, volume_token1, volume_usd, estimated_fee,
		       unique_addresses, new_addresses, whale_tx_count
		FROM daily_stats
		WHERE bucket_start = $1
	`

	var d domain.DailyStats
	err := s.pool.QueryRow(ctx, query, bucketStart).Scan(
		&d.BucketStart, &d.OpenPrice, &d.HighPrice, &d.LowPrice, &d.ClosePrice,
		&d.TxCount, &d.BuyCount, &d.SellCount,
		&d.VolumeToken0, &d.VolumeToken1, &d.VolumeUSD, &d.EstimatedFee,
		&d.UniqueAddresses, &d.NewAddresses, &d.WhaleTxCount,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get daily stats: %w", err)
	}
	return &d, nil
}
