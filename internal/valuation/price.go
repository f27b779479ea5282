// Package valuation computes pool prices, readable amounts, and USD
// notionals for pool events. Price math is evaluated in floating point;
// precision loss is accepted by consumers.
package valuation

import (
	"math"
	"math/big"

	"uniswap-pool-indexer/internal/domain"
)

// q96 is 2^96, the scaling factor of the pool's sqrt-price encoding.
var q96 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

// PriceFromSqrtPriceX96 converts the pool's fixed-point sqrt price into
// price (token1 per token0) and its inverse. A nil or zero input yields
// zero prices.
func PriceFromSqrtPriceX96(sqrtPriceX96 *big.Int) (price, inverse float64) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0, 0
	}

	ratio := new(big.Float).Quo(new(big.Float).SetInt(sqrtPriceX96), q96)
	sqrt, _ := ratio.Float64()
	price = sqrt * sqrt
	if price > 0 {
		inverse = 1 / price
	}
	return price, inverse
}

// ReadableAmount scales a raw token amount down by the token's decimals,
// returning the absolute value.
func ReadableAmount(raw *big.Int, decimals uint8) float64 {
	if raw == nil {
		return 0
	}

	abs := new(big.Float).SetInt(new(big.Int).Abs(raw))
	scale := new(big.Float).SetFloat64(math.Pow10(int(decimals)))
	out, _ := new(big.Float).Quo(abs, scale).Float64()
	return out
}

// ClassifySwapDirection tags a swap relative to token0: a positive amount0
// means the pool received token0, so the trader sold it.
func ClassifySwapDirection(amount0 *big.Int) domain.SwapDirection {
	if amount0 != nil && amount0.Sign() > 0 {
		return domain.DirectionSell
	}
	return domain.DirectionBuy
}
