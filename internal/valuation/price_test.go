package valuation

import (
	"math"
	"math/big"
	"testing"

	"uniswap-pool-indexer/internal/domain"
)

func sqrtPriceForRatio(ratio float64) *big.Int {
	sqrt := new(big.Float).Sqrt(big.NewFloat(ratio))
	scaled := new(big.Float).Mul(sqrt, q96)
	out, _ := scaled.Int(nil)
	return out
}

func TestPriceFromSqrtPriceX96(t *testing.T) {
	cases := []struct {
		name  string
		in    *big.Int
		price float64
	}{
		{"unit price", new(big.Int).Lsh(big.NewInt(1), 96), 1.0},
		{"price four", new(big.Int).Lsh(big.NewInt(2), 96), 4.0},
		{"nil input", nil, 0},
		{"zero input", big.NewInt(0), 0},
		{"negative input", big.NewInt(-1), 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			price, inverse := PriceFromSqrtPriceX96(tc.in)
			if math.Abs(price-tc.price) > 1e-9 {
				t.Errorf("price = %v, want %v", price, tc.price)
			}
			if tc.price == 0 {
				if inverse != 0 {
					t.Errorf("inverse = %v, want 0", inverse)
				}
				return
			}
			if math.Abs(price*inverse-1) > 1e-9 {
				t.Errorf("price*inverse = %v, want 1", price*inverse)
			}
		})
	}
}

func TestPriceFromSqrtPriceX96_RealisticRatio(t *testing.T) {
	// A USDC/WETH-like raw ratio around 5e-10.
	price, inverse := PriceFromSqrtPriceX96(sqrtPriceForRatio(5e-10))
	if math.Abs(price-5e-10)/5e-10 > 1e-6 {
		t.Errorf("price = %v, want ~5e-10", price)
	}
	if math.Abs(price*inverse-1) > 1e-9 {
		t.Errorf("price*inverse = %v, want 1", price*inverse)
	}
}

func TestReadableAmount(t *testing.T) {
	cases := []struct {
		name     string
		raw      *big.Int
		decimals uint8
		want     float64
	}{
		{"six decimals", big.NewInt(2_000_000), 6, 2.0},
		{"negative is absolute", big.NewInt(-1_500_000), 6, 1.5},
		{"eighteen decimals", new(big.Int).Mul(big.NewInt(3), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)), 18, 3.0},
		{"nil", nil, 18, 0},
		{"zero decimals", big.NewInt(42), 0, 42},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ReadableAmount(tc.raw, tc.decimals)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("ReadableAmount = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifySwapDirection(t *testing.T) {
	if got := ClassifySwapDirection(big.NewInt(100)); got != domain.DirectionSell {
		t.Errorf("positive amount0 = %s, want SELL", got)
	}
	if got := ClassifySwapDirection(big.NewInt(-100)); got != domain.DirectionBuy {
		t.Errorf("negative amount0 = %s, want BUY", got)
	}
	if got := ClassifySwapDirection(nil); got != domain.DirectionBuy {
		t.Errorf("nil amount0 = %s, want BUY", got)
	}
}
