package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// RawEventStore implements storage.RawEventStore using PostgreSQL.
type RawEventStore struct {
	pool *Pool
}

// NewRawEventStore creates a new RawEventStore.
func NewRawEventStore(pool *Pool) *RawEventStore {
	return &RawEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawEventStore = (*RawEventStore)(nil)

const rawEventColumns = `
	tx_hash, log_index, kind, pool, block_number, block_timestamp,
	sender, recipient, origin,
	amount0::text, amount1::text, tick_lower, tick_upper,
	sqrt_price_x96::text, liquidity::text, tick,
	amount0_readable, amount1_readable, price, price_inverse,
	direction, usd_value, gas_cost_wei::text
`

// Insert upserts a valued event by its natural key. True duplicates from
// redundant delivery are silently absorbed.
func (s *RawEventStore) Insert(ctx context.Context, e *domain.ValuedEvent) error {
	query := `
		INSERT INTO raw_events (
			tx_hash, log_index, kind, pool, block_number, block_timestamp,
			sender, recipient, origin,
			amount0, amount1, tick_lower, tick_upper,
			sqrt_price_x96, liquidity, tick,
			amount0_readable, amount1_readable, price, price_inverse,
			direction, usd_value, gas_cost_wei
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23
		)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`

	var direction *string
	if e.Direction != "" {
		d := string(e.Direction)
		direction = &d
	}

	_, err := s.pool.Exec(ctx, query,
		e.TxHash.Hex(),
		int64(e.LogIndex),
		string(e.Kind),
		e.Pool.Hex(),
		e.BlockNumber,
		e.BlockTimestamp,
		e.Sender.Hex(),
		e.Recipient.Hex(),
		e.Origin.Hex(),
		bigString(e.Amount0),
		bigString(e.Amount1),
		e.TickLower,
		e.TickUpper,
		bigStringPtr(e.SqrtPriceX96),
		bigStringPtr(e.Liquidity),
		e.Tick,
		e.Amount0Readable,
		e.Amount1Readable,
		e.Price,
		e.PriceInverse,
		direction,
		e.USDValue,
		bigStringPtr(e.GasCostWei),
	)
	if err != nil {
		return fmt.Errorf("insert raw event: %w", err)
	}
	return nil
}

// SwapsInRange retrieves swap events in [start, end), ascending by time.
func (s *RawEventStore) SwapsInRange(ctx context.Context, start, end int64) ([]*domain.ValuedEvent, error) {
	query := `
		SELECT ` + rawEventColumns + `
		FROM raw_events
		WHERE kind = 'SWAP' AND block_timestamp >= $1 AND block_timestamp < $2
		ORDER BY block_timestamp ASC, block_number ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get swaps by time range: %w", err)
	}
	defer rows.Close()

	return scanValuedEvents(rows)
}

// AllAscending retrieves every event ascending by block timestamp.
func (s *RawEventStore) AllAscending(ctx context.Context) ([]*domain.ValuedEvent, error) {
	query := `
		SELECT ` + rawEventColumns + `
		FROM raw_events
		ORDER BY block_timestamp ASC, block_number ASC, log_index ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all raw events: %w", err)
	}
	defer rows.Close()

	return scanValuedEvents(rows)
}

// SwapsByBlockOrder retrieves swaps ascending by block number, bounded to
// limit rows (0 means no bound).
func (s *RawEventStore) SwapsByBlockOrder(ctx context.Context, limit int) ([]*domain.ValuedEvent, error) {
	query := `
		SELECT ` + rawEventColumns + `
		FROM raw_events
		WHERE kind = 'SWAP'
		ORDER BY block_number ASC, log_index ASC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get swaps by block order: %w", err)
	}
	defer rows.Close()

	return scanValuedEvents(rows)
}

// DuplicateKeys returns natural keys with more than one row.
func (s *RawEventStore) DuplicateKeys(ctx context.Context) ([]storage.KeyCount, error) {
	query := `
		SELECT tx_hash, log_index, COUNT(*) AS n
		FROM raw_events
		GROUP BY tx_hash, log_index
		HAVING COUNT(*) > 1
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get duplicate keys: %w", err)
	}
	defer rows.Close()

	var out []storage.KeyCount
	for rows.Next() {
		var kc storage.KeyCount
		var logIndex int64
		if err := rows.Scan(&kc.TxHash, &logIndex, &kc.Count); err != nil {
			return nil, fmt.Errorf("scan duplicate key row: %w", err)
		}
		kc.LogIndex = uint(logIndex)
		out = append(out, kc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate duplicate key rows: %w", err)
	}
	return out, nil
}

// SwapCountsBySender counts raw swap rows per sender address.
func (s *RawEventStore) SwapCountsBySender(ctx context.Context) (map[string]int64, error) {
	query := `
		SELECT sender, COUNT(*) AS n
		FROM raw_events
		WHERE kind = 'SWAP'
		GROUP BY sender
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count swaps by sender: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var sender string
		var n int64
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("scan sender count row: %w", err)
		}
		counts[sender] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sender count rows: %w", err)
	}
	return counts, nil
}

// PricedSwapTimestamps returns timestamps of swaps with a positive price.
func (s *RawEventStore) PricedSwapTimestamps(ctx context.Context) ([]int64, error) {
	query := `
		SELECT block_timestamp
		FROM raw_events
		WHERE kind = 'SWAP' AND price > 0
		ORDER BY block_timestamp ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get priced swap timestamps: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan timestamp row: %w", err)
		}
		out = append(out, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timestamp rows: %w", err)
	}
	return out, nil
}

// scanValuedEvents scans multiple rows into a slice of ValuedEvent.
func scanValuedEvents(rows pgx.Rows) ([]*domain.ValuedEvent, error) {
	var events []*domain.ValuedEvent

	for rows.Next() {
		var (
			e                            domain.ValuedEvent
			txHash, kind, pool           string
			sender, recipient, origin    string
			logIndex                     int64
			amount0, amount1             string
			sqrtPrice, liquidity, gas    *string
			direction                    *string
		)

		err := rows.Scan(
			&txHash, &logIndex, &kind, &pool, &e.BlockNumber, &e.BlockTimestamp,
			&sender, &recipient, &origin,
			&amount0, &amount1, &e.TickLower, &e.TickUpper,
			&sqrtPrice, &liquidity, &e.Tick,
			&e.Amount0Readable, &e.Amount1Readable, &e.Price, &e.PriceInverse,
			&direction, &e.USDValue, &gas,
		)
		if err != nil {
			return nil, fmt.Errorf("scan raw event row: %w", err)
		}

		e.TxHash = common.HexToHash(txHash)
		e.LogIndex = uint(logIndex)
		e.Kind = domain.EventKind(kind)
		e.Pool = common.HexToAddress(pool)
		e.Sender = common.HexToAddress(sender)
		e.Recipient = common.HexToAddress(recipient)
		e.Origin = common.HexToAddress(origin)
		e.Amount0 = parseBig(amount0)
		e.Amount1 = parseBig(amount1)
		e.SqrtPriceX96 = parseBigPtr(sqrtPrice)
		e.Liquidity = parseBigPtr(liquidity)
		e.GasCostWei = parseBigPtr(gas)
		if direction != nil {
			e.Direction = domain.SwapDirection(*direction)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw event rows: %w", err)
	}

	return events, nil
}

// bigString renders a big.Int for a NUMERIC column; nil becomes "0".
func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// bigStringPtr renders a nullable big.Int for a NUMERIC column.
func bigStringPtr(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

// parseBig parses a NUMERIC text value into a big.Int.
func parseBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

// parseBigPtr parses a nullable NUMERIC text value.
func parseBigPtr(s *string) *big.Int {
	if s == nil {
		return nil
	}
	return parseBig(*s)
}
