package aggregation

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage/memory"
)

func f64(v float64) *float64 { return &v }

func swapAt(ts int64, logIndex uint, price float64, usd *float64, dir domain.SwapDirection, sender, recipient string) *domain.ValuedEvent {
	return &domain.ValuedEvent{
		RawEvent: domain.RawEvent{
			Kind:           domain.EventSwap,
			TxHash:         common.BigToHash(big.NewInt(ts*1000 + int64(logIndex))),
			LogIndex:       logIndex,
			BlockNumber:    ts / 12,
			BlockTimestamp: ts,
			Sender:         common.HexToAddress(sender),
			Recipient:      common.HexToAddress(recipient),
			Amount0:        big.NewInt(1),
			Amount1:        big.NewInt(1),
			Liquidity:      big.NewInt(1000),
		},
		Amount0Readable: 10,
		Amount1Readable: 20,
		Price:           price,
		Direction:       dir,
		USDValue:        usd,
	}
}

func TestComputeHourly_OHLC(t *testing.T) {
	store := memory.NewRawEventStore()
	ctx := context.Background()

	const bucket int64 = 1700000 * 3600 // arbitrary top of hour
	events := []*domain.ValuedEvent{
		swapAt(bucket+10, 1, 3.0, f64(100), domain.DirectionBuy, "0x01", "0x02"),
		swapAt(bucket+20, 2, 5.0, f64(200), domain.DirectionSell, "0x01", "0x03"),
		swapAt(bucket+30, 3, 2.0, f64(50), domain.DirectionBuy, "0x04", "0x02"),
		swapAt(bucket+40, 4, 4.0, f64(150), domain.DirectionBuy, "0x01", "0x02"),
	}
	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	agg := NewBucketAggregator(store)
	s, err := agg.ComputeHourly(ctx, bucket)
	if err != nil {
		t.Fatalf("ComputeHourly failed: %v", err)
	}

	if s.OpenPrice != 3.0 || s.ClosePrice != 4.0 {
		t.Errorf("open/close = %v/%v, want 3.0/4.0", s.OpenPrice, s.ClosePrice)
	}
	if s.HighPrice != 5.0 || s.LowPrice != 2.0 {
		t.Errorf("high/low = %v/%v, want 5.0/2.0", s.HighPrice, s.LowPrice)
	}
	if s.LowPrice > s.OpenPrice || s.LowPrice > s.ClosePrice || s.OpenPrice > s.HighPrice || s.ClosePrice > s.HighPrice {
		t.Error("OHLC ordering violated")
	}
	if s.TxCount != 4 || s.BuyCount != 3 || s.SellCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 4/3/1", s.TxCount, s.BuyCount, s.SellCount)
	}
	if s.VolumeUSD != 500 {
		t.Errorf("VolumeUSD = %v, want 500", s.VolumeUSD)
	}
	if s.EstimatedFee != 500*FeeRate {
		t.Errorf("EstimatedFee = %v, want %v", s.EstimatedFee, 500*FeeRate)
	}
	// senders {01,04} ∪ recipients {02,03}
	if s.UniqueAddresses != 4 {
		t.Errorf("UniqueAddresses = %d, want 4", s.UniqueAddresses)
	}
	if s.LiquidityMin != 1000 || s.LiquidityAvg != 1000 || s.LiquidityMax != 1000 {
		t.Errorf("liquidity = %v/%v/%v, want 1000 each", s.LiquidityMin, s.LiquidityAvg, s.LiquidityMax)
	}
}

func TestComputeHourly_EmptyBucketZeroFilled(t *testing.T) {
	agg := NewBucketAggregator(memory.NewRawEventStore())

	s, err := agg.ComputeHourly(context.Background(), 3600)
	if err != nil {
		t.Fatalf("ComputeHourly failed: %v", err)
	}
	if s.TxCount != 0 || s.OpenPrice != 0 || s.ClosePrice != 0 || s.VolumeUSD != 0 {
		t.Errorf("empty bucket not zero-filled: %+v", s)
	}
}

func TestComputeHourly_UnpricedSwapsExcluded(t *testing.T) {
	store := memory.NewRawEventStore()
	ctx := context.Background()

	const bucket int64 = 7200
	events := []*domain.ValuedEvent{
		swapAt(bucket+5, 1, 0, nil, domain.DirectionBuy, "0x0a", "0x0b"),
		swapAt(bucket+10, 2, 2.0, f64(30), domain.DirectionSell, "0x01", "0x02"),
		swapAt(bucket+15, 3, 0, f64(15_000), domain.DirectionBuy, "0x0c", "0x0d"),
	}
	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	agg := NewBucketAggregator(store)
	s, err := agg.ComputeHourly(ctx, bucket)
	if err != nil {
		t.Fatalf("ComputeHourly failed: %v", err)
	}

	// Only the priced swap counts anywhere.
	if s.TxCount != 1 || s.BuyCount != 0 || s.SellCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/0/1", s.TxCount, s.BuyCount, s.SellCount)
	}
	if s.VolumeUSD != 30 {
		t.Errorf("VolumeUSD = %v, want 30", s.VolumeUSD)
	}
	if s.VolumeToken0 != 10 || s.VolumeToken1 != 20 {
		t.Errorf("token volume = %v/%v, want 10/20", s.VolumeToken0, s.VolumeToken1)
	}
	if s.UniqueAddresses != 2 {
		t.Errorf("UniqueAddresses = %d, want 2", s.UniqueAddresses)
	}
	if s.OpenPrice != 2.0 || s.ClosePrice != 2.0 || s.LowPrice != 2.0 || s.HighPrice != 2.0 {
		t.Errorf("OHLC = %v/%v/%v/%v, want 2.0 each", s.OpenPrice, s.HighPrice, s.LowPrice, s.ClosePrice)
	}
}

func TestComputeDaily_UnpricedSwapsExcluded(t *testing.T) {
	store := memory.NewRawEventStore()
	ctx := context.Background()

	const day int64 = 86400 * 20001
	prev := day - SecondsPerDay

	// Previous day has only an unpriced swap from 0x05; it must not count
	// toward the prior-day address set.
	if err := store.Insert(ctx, swapAt(prev+100, 1, 0, nil, domain.DirectionBuy, "0x05", "0x06")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	// Target day: a priced swap by 0x05 and an unpriced whale-sized one.
	events := []*domain.ValuedEvent{
		swapAt(day+100, 2, 1.0, f64(10), domain.DirectionBuy, "0x05", "0x06"),
		swapAt(day+200, 3, 0, f64(50_000), domain.DirectionSell, "0x07", "0x08"),
	}
	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	agg := NewBucketAggregator(store)
	s, err := agg.ComputeDaily(ctx, day)
	if err != nil {
		t.Fatalf("ComputeDaily failed: %v", err)
	}

	if s.TxCount != 1 {
		t.Errorf("TxCount = %d, want 1", s.TxCount)
	}
	if s.WhaleTxCount != 0 {
		t.Errorf("WhaleTxCount = %d, want 0 (unpriced row excluded)", s.WhaleTxCount)
	}
	// 0x05 and 0x06 count as new: the prior day's only swap was unpriced.
	if s.NewAddresses != 2 {
		t.Errorf("NewAddresses = %d, want 2", s.NewAddresses)
	}
}

func TestComputeDaily_NewAddressesAndWhales(t *testing.T) {
	store := memory.NewRawEventStore()
	ctx := context.Background()

	const day int64 = 86400 * 20000
	prev := day - SecondsPerDay

	// Previous day: addresses 0x01 and 0x02 active.
	if err := store.Insert(ctx, swapAt(prev+100, 1, 1.0, f64(10), domain.DirectionBuy, "0x01", "0x02")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	// Target day: 0x01 returns, 0x03 and 0x04 are new; one whale trade.
	events := []*domain.ValuedEvent{
		swapAt(day+100, 2, 1.0, f64(20_000), domain.DirectionBuy, "0x01", "0x03"),
		swapAt(day+200, 3, 1.2, f64(50), domain.DirectionSell, "0x04", "0x01"),
	}
	for _, e := range events {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	agg := NewBucketAggregator(store)
	s, err := agg.ComputeDaily(ctx, day)
	if err != nil {
		t.Fatalf("ComputeDaily failed: %v", err)
	}

	if s.UniqueAddresses != 3 {
		t.Errorf("UniqueAddresses = %d, want 3", s.UniqueAddresses)
	}
	if s.NewAddresses != 2 {
		t.Errorf("NewAddresses = %d, want 2 (0x03, 0x04)", s.NewAddresses)
	}
	if s.WhaleTxCount != 1 {
		t.Errorf("WhaleTxCount = %d, want 1", s.WhaleTxCount)
	}
}
