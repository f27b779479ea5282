package domain

// UserType classifies an account based on its observed activity.
type UserType string

const (
	UserTypeUnset  UserType = ""
	UserTypeRetail UserType = "RETAIL"
	UserTypeWhale  UserType = "WHALE"
	UserTypeBot    UserType = "BOT"
	UserTypeLP     UserType = "LP"
	UserTypeMEV    UserType = "MEV"
)

// HourlyStats is one OHLC/volume row per hour bucket.
// Key: BucketStart (Unix seconds, top of hour). Rows are recomputed
// wholesale from raw events and overwritten on conflict.
type HourlyStats struct {
	BucketStart int64

	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	ClosePrice float64

	TxCount   int64
	BuyCount  int64
	SellCount int64

	VolumeToken0 float64
	VolumeToken1 float64
	VolumeUSD    float64
	EstimatedFee float64

	UniqueAddresses int64

	LiquidityMin float64
	LiquidityAvg float64
	LiquidityMax float64
}

// DailyStats is one OHLC/volume row per calendar day.
// Key: BucketStart (Unix seconds, midnight UTC).
type DailyStats struct {
	BucketStart int64

	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	ClosePrice float64

	TxCount   int64
	BuyCount  int64
	SellCount int64

	VolumeToken0 float64
	VolumeToken1 float64
	VolumeUSD    float64
	EstimatedFee float64

	UniqueAddresses int64
	NewAddresses    int64
	WhaleTxCount    int64
}

// UserStats is one row per account address, mutated incrementally on every
// relevant event. Counts never decrease; LargestTxUSD is non-decreasing.
type UserStats struct {
	Address string

	TotalTransactions int64
	BuyCount          int64
	SellCount         int64

	TotalVolumeUSD float64
	LargestTxUSD   float64

	FirstTxAt int64
	LastTxAt  int64

	IsLiquidityProvider   bool
	LiquidityProvidedUSD  float64
	UserType              UserType
}
