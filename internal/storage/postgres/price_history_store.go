package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// PriceHistoryStore implements storage.PriceHistoryStore using PostgreSQL.
type PriceHistoryStore struct {
	pool *Pool
}

// NewPriceHistoryStore creates a new PriceHistoryStore.
func NewPriceHistoryStore(pool *Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PriceHistoryStore = (*PriceHistoryStore)(nil)

// Upsert inserts or overwrites the point keyed by its timestamp.
func (s *PriceHistoryStore) Upsert(ctx context.Context, p *domain.PriceHistoryPoint) error {
	query := `
		INSERT INTO price_history (ts, block_number, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (ts) DO UPDATE SET
			block_number = EXCLUDED.block_number,
			price = EXCLUDED.price
	`

	_, err := s.pool.Exec(ctx, query, p.Timestamp, p.BlockNumber, p.Price)
	if err != nil {
		return fmt.Errorf("upsert price history point: %w", err)
	}
	return nil
}

// InRange retrieves points with timestamp in [start, end), ascending.
func (s *PriceHistoryStore) InRange(ctx context.Context, start, end int64) ([]*domain.PriceHistoryPoint, error) {
	query := `
		SELECT ts, block_number, price
		FROM price_history
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get price history by range: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// All retrieves every point ascending by timestamp.
func (s *PriceHistoryStore) All(ctx context.Context) ([]*domain.PriceHistoryPoint, error) {
	query := `
		SELECT ts, block_number, price
		FROM price_history
		ORDER BY ts ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all price history: %w", err)
	}
	defer rows.Close()

	return scanPricePoints(rows)
}

// scanPricePoints scans multiple rows into a slice of PriceHistoryPoint.
func scanPricePoints(rows pgx.Rows) ([]*domain.PriceHistoryPoint, error) {
	var points []*domain.PriceHistoryPoint

	for rows.Next() {
		var p domain.PriceHistoryPoint
		if err := rows.Scan(&p.Timestamp, &p.BlockNumber, &p.Price); err != nil {
			return nil, fmt.Errorf("scan price history row: %w", err)
		}
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price history rows: %w", err)
	}

	return points, nil
}
