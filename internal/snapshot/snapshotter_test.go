package snapshot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/ethereum"
	"uniswap-pool-indexer/internal/storage/memory"
	"uniswap-pool-indexer/internal/valuation"
)

var (
	poolAddr = common.HexToAddress("0x8ad599c3a0ff1de082011efddc58f1908eb6e6d8")
	token0   = domain.TokenInfo{
		Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		Symbol:   "USDC",
		Decimals: 6,
	}
	token1 = domain.TokenInfo{
		Address:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Symbol:   "WETH",
		Decimals: 18,
	}
)

// callRoutingRPC answers eth_call by contract address and selector.
type callRoutingRPC struct {
	slot0      []byte
	liquidity  []byte
	balances   map[common.Address][]byte
	balanceErr error
	head       int64
}

func (r *callRoutingRPC) CallContract(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	if to == poolAddr {
		switch {
		case bytes.Equal(data, slot0Selector):
			return r.slot0, nil
		case bytes.Equal(data, liquiditySelector):
			return r.liquidity, nil
		}
		return nil, errors.New("unexpected pool call")
	}
	if r.balanceErr != nil {
		return nil, r.balanceErr
	}
	return r.balances[to], nil
}

func (r *callRoutingRPC) BlockByNumber(_ context.Context, number int64) (*ethereum.Block, error) {
	if number != ethereum.LatestBlock {
		return nil, errors.New("unexpected block lookup")
	}
	return &ethereum.Block{Number: r.head}, nil
}

func (r *callRoutingRPC) TransactionReceipt(context.Context, common.Hash) (*ethereum.Receipt, error) {
	return nil, errors.New("not implemented")
}

func (r *callRoutingRPC) CodeAt(context.Context, common.Address) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func pad(v *big.Int) []byte {
	word := make([]byte, 32)
	v.FillBytes(word)
	return word
}

func slot0Return(sqrtPrice *big.Int, tick int64) []byte {
	out := pad(sqrtPrice)
	t := big.NewInt(tick)
	if t.Sign() < 0 {
		t.Add(t, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	out = append(out, pad(t)...)
	// remaining slot0 words, irrelevant here
	for i := 0; i < 5; i++ {
		out = append(out, make([]byte, 32)...)
	}
	return out
}

func fixedClock(ts int64) func() time.Time {
	return func() time.Time { return time.Unix(ts, 0).UTC() }
}

func TestSnapshotter_Take(t *testing.T) {
	sqrtPrice := new(big.Int).Lsh(big.NewInt(1), 96)
	rpc := &callRoutingRPC{
		slot0:     slot0Return(sqrtPrice, -100),
		liquidity: pad(big.NewInt(777)),
		balances: map[common.Address][]byte{
			token0.Address: pad(big.NewInt(5_000_000_000)),                                        // 5000 USDC
			token1.Address: pad(new(big.Int).Mul(big.NewInt(3), big.NewInt(1_000_000_000_000_000_000))), // 3 WETH
		},
		head: 18_000_321,
	}

	store := memory.NewSnapshotStore()
	hourly := memory.NewHourlyStatsStore()
	ctx := context.Background()

	const now int64 = 1_700_000_000
	// Two trailing buckets inside the window, one outside.
	for _, h := range []*domain.HourlyStats{
		{BucketStart: now - 3600, VolumeUSD: 100, EstimatedFee: 1, TxCount: 5},
		{BucketStart: now - 7200, VolumeUSD: 200, EstimatedFee: 2, TxCount: 7},
		{BucketStart: now - 30*3600, VolumeUSD: 999, EstimatedFee: 9, TxCount: 99},
	} {
		if err := hourly.Upsert(ctx, h); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	s := NewSnapshotter(SnapshotterOptions{
		RPC:    rpc,
		Valuer: valuation.NewValuer(valuation.ValuerOptions{}),
		Store:  store,
		Hourly: hourly,
		Pool:   poolAddr,
		Token0: token0,
		Token1: token1,
		Now:    fixedClock(now),
	})

	snap, err := s.Take(ctx)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}

	if snap.BlockNumber != 18_000_321 {
		t.Errorf("BlockNumber = %d, want 18000321", snap.BlockNumber)
	}
	if snap.SqrtPriceX96 != sqrtPrice.String() {
		t.Errorf("SqrtPriceX96 = %s", snap.SqrtPriceX96)
	}
	if snap.Tick != -100 {
		t.Errorf("Tick = %d, want -100", snap.Tick)
	}
	if snap.Liquidity != "777" {
		t.Errorf("Liquidity = %s, want 777", snap.Liquidity)
	}
	if snap.Price != 1.0 {
		t.Errorf("Price = %v, want 1.0", snap.Price)
	}
	if snap.Balance0 != 5000 || snap.Balance1 != 3 {
		t.Errorf("balances = %v/%v, want 5000/3", snap.Balance0, snap.Balance1)
	}
	// Only the USDC side resolves a unit price (stable short-circuit).
	if snap.TVLUSD != 5000 {
		t.Errorf("TVLUSD = %v, want 5000", snap.TVLUSD)
	}
	if snap.Volume24hUSD != 300 || snap.Fees24hUSD != 3 || snap.TxCount24h != 12 {
		t.Errorf("trailing 24h = %v/%v/%d, want 300/3/12", snap.Volume24hUSD, snap.Fees24hUSD, snap.TxCount24h)
	}

	stored, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if stored.SnapshotTime != now {
		t.Errorf("SnapshotTime = %d, want %d", stored.SnapshotTime, now)
	}
	if stored.BlockNumber != 18_000_321 {
		t.Errorf("stored BlockNumber = %d, want 18000321", stored.BlockNumber)
	}
}

func TestSnapshotter_BalanceLookupFailureIsNonCritical(t *testing.T) {
	rpc := &callRoutingRPC{
		slot0:      slot0Return(new(big.Int).Lsh(big.NewInt(1), 96), 0),
		liquidity:  pad(big.NewInt(1)),
		balanceErr: errors.New("rpc timeout"),
	}

	s := NewSnapshotter(SnapshotterOptions{
		RPC:    rpc,
		Valuer: valuation.NewValuer(valuation.ValuerOptions{}),
		Store:  memory.NewSnapshotStore(),
		Hourly: memory.NewHourlyStatsStore(),
		Pool:   poolAddr,
		Token0: token0,
		Token1: token1,
		Logger: log.New(io.Discard, "", 0),
		Now:    fixedClock(1_700_000_000),
	})

	snap, err := s.Take(context.Background())
	if err != nil {
		t.Fatalf("Take failed despite balance lookups being non-critical: %v", err)
	}
	if snap.Balance0 != 0 || snap.Balance1 != 0 || snap.TVLUSD != 0 {
		t.Errorf("balances/TVL = %v/%v/%v, want zeros", snap.Balance0, snap.Balance1, snap.TVLUSD)
	}
}

func TestSnapshotter_Slot0FailureIsHard(t *testing.T) {
	rpc := &callRoutingRPC{} // nil slot0 payload triggers the length check

	s := NewSnapshotter(SnapshotterOptions{
		RPC:    rpc,
		Valuer: valuation.NewValuer(valuation.ValuerOptions{}),
		Store:  memory.NewSnapshotStore(),
		Hourly: memory.NewHourlyStatsStore(),
		Pool:   poolAddr,
		Token0: token0,
		Token1: token1,
		Now:    fixedClock(1_700_000_000),
	})

	if _, err := s.Take(context.Background()); err == nil {
		t.Error("Take succeeded with an invalid slot0 response")
	}
}
