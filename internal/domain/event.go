package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind identifies the pool event type.
type EventKind string

const (
	EventSwap    EventKind = "SWAP"
	EventMint    EventKind = "MINT"
	EventBurn    EventKind = "BURN"
	EventCollect EventKind = "COLLECT"
)

// SwapDirection classifies a swap relative to token0.
type SwapDirection string

const (
	DirectionBuy  SwapDirection = "BUY"
	DirectionSell SwapDirection = "SELL"
)

// TokenInfo holds token metadata set once at processor startup.
type TokenInfo struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// RawEvent is a normalized pool log event.
// Natural key: (TxHash, LogIndex). Rows are immutable once written.
type RawEvent struct {
	Kind        EventKind
	Pool        common.Address
	TxHash      common.Hash
	LogIndex    uint
	BlockNumber int64
	// BlockTimestamp is Unix seconds of the containing block (chain time).
	BlockTimestamp int64

	// Sender is the nominal sender from the log topics; Origin is the
	// account that signed the transaction, recovered from the receipt.
	Sender    common.Address
	Recipient common.Address
	Origin    common.Address

	// Signed token deltas from the pool's perspective.
	Amount0 *big.Int
	Amount1 *big.Int

	// Tick range for Mint/Burn/Collect.
	TickLower int32
	TickUpper int32

	// Swap-only fields.
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int32
}

// ValuedEvent is a RawEvent enriched with derived fields, ready for storage.
type ValuedEvent struct {
	RawEvent

	// Readable amounts after decimal scaling (absolute values).
	Amount0Readable float64
	Amount1Readable float64

	// Pool price in both quote directions (token1/token0 and inverse).
	Price        float64
	PriceInverse float64

	Direction SwapDirection

	// USDValue is nil when no pricing source resolved.
	USDValue *float64

	// GasCostWei is gasUsed * effectiveGasPrice; Swap events only.
	GasCostWei *big.Int
}
