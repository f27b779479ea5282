package valuation

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/ethereum"
)

// quoteExactInputSingle(address,address,uint24,uint256,uint160) selector.
var quoteExactInputSingleSelector = []byte{0xf7, 0x72, 0x9d, 0x43}

// DefaultFeeTiers are the quoting fee tiers tried in ascending order.
var DefaultFeeTiers = []uint32{500, 3000, 10000}

// QuoterClient resolves unit prices through the on-chain quoter contract
// via read-only simulated calls.
type QuoterClient struct {
	rpc      ethereum.RPCClient
	quoter   common.Address
	feeTiers []uint32
}

// NewQuoterClient creates a QuoterClient. Nil feeTiers uses DefaultFeeTiers.
func NewQuoterClient(rpc ethereum.RPCClient, quoter common.Address, feeTiers []uint32) *QuoterClient {
	if len(feeTiers) == 0 {
		feeTiers = DefaultFeeTiers
	}
	return &QuoterClient{rpc: rpc, quoter: quoter, feeTiers: feeTiers}
}

// UnitPrice quotes one whole unit of tokenIn in terms of tokenOut, trying
// each fee tier in ascending order until one pool answers. Returns an error
// only when every tier fails.
func (q *QuoterClient) UnitPrice(ctx context.Context, tokenIn, tokenOut common.Address, decimalsIn, decimalsOut uint8) (float64, error) {
	amountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimalsIn)), nil)

	var lastErr error
	for _, fee := range q.feeTiers {
		data := encodeQuoteExactInputSingle(tokenIn, tokenOut, fee, amountIn)

		out, err := q.rpc.CallContract(ctx, q.quoter, data)
		if err != nil {
			lastErr = err
			continue
		}
		if len(out) < 32 {
			lastErr = fmt.Errorf("short quoter return: %d bytes", len(out))
			continue
		}

		amountOut := new(big.Int).SetBytes(out[:32])
		if amountOut.Sign() <= 0 {
			lastErr = fmt.Errorf("zero quote at fee tier %d", fee)
			continue
		}

		price, _ := new(big.Float).Quo(
			new(big.Float).SetInt(amountOut),
			new(big.Float).SetFloat64(math.Pow10(int(decimalsOut))),
		).Float64()
		return price, nil
	}

	return 0, fmt.Errorf("all fee tiers failed: %w", lastErr)
}

// encodeQuoteExactInputSingle builds calldata for the quoter call with a
// zero sqrtPriceLimitX96 (no limit).
func encodeQuoteExactInputSingle(tokenIn, tokenOut common.Address, fee uint32, amountIn *big.Int) []byte {
	data := make([]byte, 0, 4+5*32)
	data = append(data, quoteExactInputSingleSelector...)
	data = append(data, common.LeftPadBytes(tokenIn.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(tokenOut.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(new(big.Int).SetUint64(uint64(fee)).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amountIn.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(nil, 32)...)
	return data
}
