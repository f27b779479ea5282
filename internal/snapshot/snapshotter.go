// Package snapshot captures hourly pool state: slot0 price, in-range
// liquidity, token balances, a TVL estimate, and trailing 24h activity.
package snapshot

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/ethereum"
	"uniswap-pool-indexer/internal/storage"
	"uniswap-pool-indexer/internal/valuation"
)

// Pool and ERC-20 read selectors.
var (
	slot0Selector     = []byte{0x38, 0x50, 0xc7, 0xbd} // slot0()
	liquiditySelector = []byte{0x1a, 0x68, 0x65, 0x02} // liquidity()
	balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31} // balanceOf(address)
)

// Snapshotter reads pool state over RPC and persists PoolSnapshot rows.
type Snapshotter struct {
	rpc    ethereum.RPCClient
	valuer *valuation.Valuer
	store  storage.SnapshotStore
	hourly storage.HourlyStatsStore

	pool   common.Address
	token0 domain.TokenInfo
	token1 domain.TokenInfo

	logger *log.Logger
	now    func() time.Time
}

// SnapshotterOptions contains configuration for creating a Snapshotter.
type SnapshotterOptions struct {
	RPC    ethereum.RPCClient
	Valuer *valuation.Valuer
	Store  storage.SnapshotStore
	Hourly storage.HourlyStatsStore

	Pool   common.Address
	Token0 domain.TokenInfo
	Token1 domain.TokenInfo

	Logger *log.Logger
	Now    func() time.Time
}

// NewSnapshotter creates a snapshotter.
func NewSnapshotter(opts SnapshotterOptions) *Snapshotter {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Snapshotter{
		rpc:    opts.RPC,
		valuer: opts.Valuer,
		store:  opts.Store,
		hourly: opts.Hourly,
		pool:   opts.Pool,
		token0: opts.Token0,
		token1: opts.Token1,
		logger: logger,
		now:    now,
	}
}

// Take reads pool state, sums trailing 24h activity, and upserts the
// snapshot. Balance lookups are non-critical and skipped on error.
func (s *Snapshotter) Take(ctx context.Context) (*domain.PoolSnapshot, error) {
	nowTime := s.now()

	sqrtPrice, tick, err := s.readSlot0(ctx)
	if err != nil {
		return nil, fmt.Errorf("read slot0: %w", err)
	}
	liquidity, err := s.readLiquidity(ctx)
	if err != nil {
		return nil, fmt.Errorf("read liquidity: %w", err)
	}
	head, err := s.rpc.BlockByNumber(ctx, ethereum.LatestBlock)
	if err != nil {
		return nil, fmt.Errorf("read head block: %w", err)
	}

	price, _ := valuation.PriceFromSqrtPriceX96(sqrtPrice)

	snap := &domain.PoolSnapshot{
		SnapshotTime: nowTime.Unix(),
		BlockNumber:  head.Number,
		SqrtPriceX96: sqrtPrice.String(),
		Tick:         tick,
		Liquidity:    liquidity.String(),
		Price:        price,
	}

	s.fillBalancesAndTVL(ctx, snap)

	if err := s.fillTrailing24h(ctx, snap, nowTime); err != nil {
		return nil, err
	}

	if err := s.store.Upsert(ctx, snap); err != nil {
		return nil, fmt.Errorf("upsert snapshot: %w", err)
	}
	return snap, nil
}

func (s *Snapshotter) readSlot0(ctx context.Context) (*big.Int, int32, error) {
	out, err := s.rpc.CallContract(ctx, s.pool, slot0Selector)
	if err != nil {
		return nil, 0, err
	}
	// slot0 returns 7 words; sqrtPriceX96 is the first, tick the second.
	if len(out) < 64 {
		return nil, 0, fmt.Errorf("slot0 returned %d bytes", len(out))
	}
	sqrtPrice := new(big.Int).SetBytes(out[:32])
	tick := new(big.Int).SetBytes(out[32:64])
	if out[32]&0x80 != 0 {
		tick.Sub(tick, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return sqrtPrice, int32(tick.Int64()), nil
}

func (s *Snapshotter) readLiquidity(ctx context.Context) (*big.Int, error) {
	out, err := s.rpc.CallContract(ctx, s.pool, liquiditySelector)
	if err != nil {
		return nil, err
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("liquidity returned %d bytes", len(out))
	}
	return new(big.Int).SetBytes(out[:32]), nil
}

// fillBalancesAndTVL reads both token balances and estimates TVL from unit
// prices. Every step here is best-effort.
func (s *Snapshotter) fillBalancesAndTVL(ctx context.Context, snap *domain.PoolSnapshot) {
	balance0, err := s.readBalance(ctx, s.token0)
	if err != nil {
		s.logger.Printf("[snapshot] balance lookup for %s skipped: %v", s.token0.Symbol, err)
	} else {
		snap.Balance0 = balance0
	}
	balance1, err := s.readBalance(ctx, s.token1)
	if err != nil {
		s.logger.Printf("[snapshot] balance lookup for %s skipped: %v", s.token1.Symbol, err)
	} else {
		snap.Balance1 = balance1
	}

	var tvl float64
	if snap.Balance0 > 0 {
		if p := s.valuer.UnitPriceUSD(ctx, s.token0); p != nil {
			tvl += snap.Balance0 * *p
		}
	}
	if snap.Balance1 > 0 {
		if p := s.valuer.UnitPriceUSD(ctx, s.token1); p != nil {
			tvl += snap.Balance1 * *p
		}
	}
	snap.TVLUSD = tvl
}

func (s *Snapshotter) readBalance(ctx context.Context, token domain.TokenInfo) (float64, error) {
	data := make([]byte, 0, 36)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(s.pool.Bytes(), 32)...)

	out, err := s.rpc.CallContract(ctx, token.Address, data)
	if err != nil {
		return 0, err
	}
	if len(out) < 32 {
		return 0, fmt.Errorf("balanceOf returned %d bytes", len(out))
	}
	raw := new(big.Int).SetBytes(out[:32])
	return valuation.ReadableAmount(raw, token.Decimals), nil
}

func (s *Snapshotter) fillTrailing24h(ctx context.Context, snap *domain.PoolSnapshot, nowTime time.Time) error {
	end := nowTime.Unix()
	buckets, err := s.hourly.InRange(ctx, end-24*3600, end)
	if err != nil {
		return fmt.Errorf("load trailing hourly stats: %w", err)
	}
	for _, b := range buckets {
		snap.Volume24hUSD += b.VolumeUSD
		snap.Fees24hUSD += b.EstimatedFee
		snap.TxCount24h += b.TxCount
	}
	return nil
}
