package postgres

import (
	"context"
	"fmt"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// UserStatsStore implements storage.UserStatsStore using PostgreSQL.
type UserStatsStore struct {
	pool *Pool
}

// NewUserStatsStore creates a new UserStatsStore.
func NewUserStatsStore(pool *Pool) *UserStatsStore {
	return &UserStatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.UserStatsStore = (*UserStatsStore)(nil)

// Merge applies an incoming contribution row as a single conditional
// upsert. Because the merge runs inside one statement, two concurrent
// updates to the same address serialize on the row and neither increment
// is lost.
func (s *UserStatsStore) Merge(ctx context.Context, u *domain.UserStats) error {
	query := `
		INSERT INTO user_stats (
			address, total_transactions, buy_count, sell_count,
			total_volume_usd, largest_tx_usd, first_tx_at, last_tx_at,
			is_liquidity_provider, liquidity_provided_usd, user_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (address) DO UPDATE SET
			total_transactions = user_stats.total_transactions + EXCLUDED.total_transactions,
			buy_count = user_stats.buy_count + EXCLUDED.buy_count,
			sell_count = user_stats.sell_count + EXCLUDED.sell_count,
			total_volume_usd = user_stats.total_volume_usd + EXCLUDED.total_volume_usd,
			largest_tx_usd = GREATEST(user_stats.largest_tx_usd, EXCLUDED.largest_tx_usd),
			first_tx_at = CASE
				WHEN user_stats.first_tx_at = 0 THEN EXCLUDED.first_tx_at
				WHEN EXCLUDED.first_tx_at = 0 THEN user_stats.first_tx_at
				ELSE LEAST(user_stats.first_tx_at, EXCLUDED.first_tx_at)
			END,
			last_tx_at = GREATEST(user_stats.last_tx_at, EXCLUDED.last_tx_at),
			is_liquidity_provider = user_stats.is_liquidity_provider OR EXCLUDED.is_liquidity_provider,
			liquidity_provided_usd = user_stats.liquidity_provided_usd + EXCLUDED.liquidity_provided_usd,
			user_type = CASE
				WHEN user_stats.user_type = 'LP' OR EXCLUDED.user_type = 'LP' THEN 'LP'
				WHEN EXCLUDED.user_type = 'WHALE' THEN 'WHALE'
				WHEN user_stats.user_type = '' THEN EXCLUDED.user_type
				ELSE user_stats.user_type
			END
	`

	_, err := s.pool.Exec(ctx, query,
		u.Address,
		u.TotalTransactions,
		u.BuyCount,
		u.SellCount,
		u.TotalVolumeUSD,
		u.LargestTxUSD,
		u.FirstTxAt,
		u.LastTxAt,
		u.IsLiquidityProvider,
		u.LiquidityProvidedUSD,
		string(u.UserType),
	)
	if err != nil {
		return fmt.Errorf("merge user stats: %w", err)
	}
	return nil
}

// Replace overwrites the row regardless of existing values. Resync only.
func (s *UserStatsStore) Replace(ctx context.Context, u *domain.UserStats) error {
	query := `
		INSERT INTO user_stats (
			address, total_transactions, buy_count, sell_count,
			total_volume_usd, largest_tx_usd, first_tx_at, last_tx_at,
			is_liquidity_provider, liquidity_provided_usd, user_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (address) DO UPDATE SET
			total_transactions = EXCLUDED.total_transactions,
			buy_count = EXCLUDED.buy_count,
			sell_count = EXCLUDED.sell_count,
			total_volume_usd = EXCLUDED.total_volume_usd,
			largest_tx_usd = EXCLUDED.largest_tx_usd,
			first_tx_at = EXCLUDED.first_tx_at,
			last_tx_at = EXCLUDED.last_tx_at,
			is_liquidity_provider = EXCLUDED.is_liquidity_provider,
			liquidity_provided_usd = EXCLUDED.liquidity_provided_usd,
			user_type = EXCLUDED.user_type
	`

	_, err := s.pool.Exec(ctx, query,
		u.Address,
		u.TotalTransactions,
		u.BuyCount,
		u.SellCount,
		u.TotalVolumeUSD,
		u.LargestTxUSD,
		u.FirstTxAt,
		u.LastTxAt,
		u.IsLiquidityProvider,
		u.LiquidityProvidedUSD,
		string(u.UserType),
	)
	if err != nil {
		return fmt.Errorf("replace user stats: %w", err)
	}
	return nil
}

const userStatsColumns = `
	address, total_transactions, buy_count, sell_count,
	total_volume_usd, largest_tx_usd, first_tx_at, last_tx_at,
	is_liquidity_provider, liquidity_provided_usd, user_type
`

// Get retrieves stats for an address.
func (s *UserStatsStore) Get(ctx context.Context, address string) (*domain.UserStats, error) {
	query := `SELECT ` + userStatsColumns + ` FROM user_stats WHERE address = $1`

	var u domain.UserStats
	var userType string
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&u.Address, &u.TotalTransactions, &u.BuyCount, &u.SellCount,
		&u.TotalVolumeUSD, &u.LargestTxUSD, &u.FirstTxAt, &u.LastTxAt,
		&u.IsLiquidityProvider, &u.LiquidityProvidedUSD, &userType,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user stats: %w", err)
	}
	u.UserType = domain.UserType(userType)
	return &u, nil
}

// All retrieves every row, ordered by address.
func (s *UserStatsStore) All(ctx context.Context) ([]*domain.UserStats, error) {
	query := `SELECT ` + userStatsColumns + ` FROM user_stats ORDER BY address ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all user stats: %w", err)
	}
	defer rows.Close()

	var out []*domain.UserStats
	for rows.Next() {
		var u domain.UserStats
		var userType string
		err := rows.Scan(
			&u.Address, &u.TotalTransactions, &u.BuyCount, &u.SellCount,
			&u.TotalVolumeUSD, &u.LargestTxUSD, &u.FirstTxAt, &u.LastTxAt,
			&u.IsLiquidityProvider, &u.LiquidityProvidedUSD, &userType,
		)
		if err != nil {
			return nil, fmt.Errorf("scan user stats row: %w", err)
		}
		u.UserType = domain.UserType(userType)
		out = append(out, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user stats rows: %w", err)
	}
	return out, nil
}
