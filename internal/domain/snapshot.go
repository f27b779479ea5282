package domain

// PriceHistoryPoint is one point per priced swap, upserted by timestamp.
type PriceHistoryPoint struct {
	Timestamp   int64 // Unix seconds, unique key
	BlockNumber int64
	Price       float64
}

// PoolSnapshot captures pool state once per hour.
// Key: SnapshotTime (Unix seconds).
type PoolSnapshot struct {
	SnapshotTime int64
	BlockNumber  int64

	SqrtPriceX96 string // decimal string of the uint160 value
	Tick         int32
	Liquidity    string // decimal string of the uint128 value
	Price        float64

	// Token balances held by the pool, decimal-scaled. Zero when the
	// balance lookup was skipped (non-critical failure).
	Balance0 float64
	Balance1 float64

	// TVLUSD estimates total value locked from balances and unit prices.
	TVLUSD float64

	// Trailing 24h activity summed from hourly stats.
	Volume24hUSD float64
	Fees24hUSD   float64
	TxCount24h   int64
}
