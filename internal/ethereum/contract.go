package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ERC-20 and pool read selectors.
var (
	token0Selector   = []byte{0x0d, 0xfe, 0x16, 0x81} // token0()
	token1Selector   = []byte{0xd2, 0x12, 0x20, 0xa7} // token1()
	symbolSelector   = []byte{0x95, 0xd8, 0x9b, 0x41} // symbol()
	decimalsSelector = []byte{0x31, 0x3c, 0xe5, 0x67} // decimals()
)

// PoolTokens reads the pool's token pair addresses.
func PoolTokens(ctx context.Context, rpc RPCClient, pool common.Address) (common.Address, common.Address, error) {
	t0, err := callAddress(ctx, rpc, pool, token0Selector)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("read token0: %w", err)
	}
	t1, err := callAddress(ctx, rpc, pool, token1Selector)
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("read token1: %w", err)
	}
	return t0, t1, nil
}

// TokenSymbol reads an ERC-20 symbol. Handles both the dynamic-string ABI
// encoding and the legacy fixed bytes32 form.
func TokenSymbol(ctx context.Context, rpc RPCClient, token common.Address) (string, error) {
	out, err := rpc.CallContract(ctx, token, symbolSelector)
	if err != nil {
		return "", fmt.Errorf("read symbol: %w", err)
	}
	if len(out) == 32 {
		return strings.TrimRight(string(out), "\x00"), nil
	}
	if len(out) >= 64 {
		length := new(big.Int).SetBytes(out[32:64]).Int64()
		if length >= 0 && 64+length <= int64(len(out)) {
			return string(out[64 : 64+length]), nil
		}
	}
	return "", fmt.Errorf("symbol returned %d bytes", len(out))
}

// TokenDecimals reads an ERC-20 decimals value.
func TokenDecimals(ctx context.Context, rpc RPCClient, token common.Address) (uint8, error) {
	out, err := rpc.CallContract(ctx, token, decimalsSelector)
	if err != nil {
		return 0, fmt.Errorf("read decimals: %w", err)
	}
	if len(out) < 32 {
		return 0, fmt.Errorf("decimals returned %d bytes", len(out))
	}
	return uint8(new(big.Int).SetBytes(out[:32]).Uint64()), nil
}

func callAddress(ctx context.Context, rpc RPCClient, to common.Address, data []byte) (common.Address, error) {
	out, err := rpc.CallContract(ctx, to, data)
	if err != nil {
		return common.Address{}, err
	}
	if len(out) < 32 {
		return common.Address{}, fmt.Errorf("call returned %d bytes", len(out))
	}
	return common.BytesToAddress(out[:32]), nil
}
