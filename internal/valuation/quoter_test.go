package valuation

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/ethereum"
)

// quoteRPC answers CallContract with a per-call handler and counts calls.
type quoteRPC struct {
	calls   int
	handler func(to common.Address, data []byte) ([]byte, error)
}

func (r *quoteRPC) BlockByNumber(context.Context, int64) (*ethereum.Block, error) {
	return nil, errors.New("not implemented")
}

func (r *quoteRPC) TransactionReceipt(context.Context, common.Hash) (*ethereum.Receipt, error) {
	return nil, errors.New("not implemented")
}

func (r *quoteRPC) CodeAt(context.Context, common.Address) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (r *quoteRPC) CallContract(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	r.calls++
	return r.handler(to, data)
}

var (
	quoterAddr = common.HexToAddress("0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6")
	wethAddr   = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
)

func TestQuoterClient_UnitPrice(t *testing.T) {
	rpc := &quoteRPC{handler: func(to common.Address, data []byte) ([]byte, error) {
		if to != quoterAddr {
			t.Errorf("call target = %s, want quoter", to.Hex())
		}
		if !bytes.Equal(data[:4], quoteExactInputSingleSelector) {
			t.Errorf("selector = %x, want %x", data[:4], quoteExactInputSingleSelector)
		}
		if len(data) != 4+5*32 {
			t.Errorf("calldata length = %d, want %d", len(data), 4+5*32)
		}
		// 2000 USDC out for one whole token in.
		return common.LeftPadBytes(big.NewInt(2_000_000_000).Bytes(), 32), nil
	}}

	q := NewQuoterClient(rpc, quoterAddr, nil)
	price, err := q.UnitPrice(context.Background(), wethAddr, DefaultReferenceStable.Address, 18, 6)
	if err != nil {
		t.Fatalf("UnitPrice failed: %v", err)
	}
	if math.Abs(price-2000) > 1e-9 {
		t.Errorf("price = %v, want 2000", price)
	}
	if rpc.calls != 1 {
		t.Errorf("calls = %d, want 1 (first fee tier answered)", rpc.calls)
	}
}

func TestQuoterClient_FallsThroughFeeTiers(t *testing.T) {
	rpc := &quoteRPC{handler: nil}
	rpc.handler = func(common.Address, []byte) ([]byte, error) {
		if rpc.calls < 3 {
			return nil, errors.New("execution reverted")
		}
		return common.LeftPadBytes(big.NewInt(1_000_000).Bytes(), 32), nil
	}

	q := NewQuoterClient(rpc, quoterAddr, nil)
	price, err := q.UnitPrice(context.Background(), wethAddr, DefaultReferenceStable.Address, 18, 6)
	if err != nil {
		t.Fatalf("UnitPrice failed: %v", err)
	}
	if price != 1.0 {
		t.Errorf("price = %v, want 1.0", price)
	}
	if rpc.calls != 3 {
		t.Errorf("calls = %d, want 3 (two tiers reverted)", rpc.calls)
	}
}

func TestQuoterClient_AllTiersFail(t *testing.T) {
	rpc := &quoteRPC{handler: func(common.Address, []byte) ([]byte, error) {
		return nil, errors.New("execution reverted")
	}}

	q := NewQuoterClient(rpc, quoterAddr, nil)
	if _, err := q.UnitPrice(context.Background(), wethAddr, DefaultReferenceStable.Address, 18, 6); err == nil {
		t.Error("UnitPrice succeeded with every fee tier failing")
	}
	if rpc.calls != len(DefaultFeeTiers) {
		t.Errorf("calls = %d, want %d", rpc.calls, len(DefaultFeeTiers))
	}
}

func TestQuoterClient_ZeroQuoteIsFailure(t *testing.T) {
	rpc := &quoteRPC{handler: func(common.Address, []byte) ([]byte, error) {
		return make([]byte, 32), nil
	}}

	q := NewQuoterClient(rpc, quoterAddr, nil)
	if _, err := q.UnitPrice(context.Background(), wethAddr, DefaultReferenceStable.Address, 18, 6); err == nil {
		t.Error("UnitPrice accepted a zero quote")
	}
}
