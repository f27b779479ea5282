// Package aggregation maintains the rollup tables: hourly/daily OHLC and
// volume buckets recomputed wholesale from raw events, and per-account
// statistics merged incrementally per event.
package aggregation

import (
	"context"
	"fmt"
	"math/big"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

const (
	// FeeRate is the fixed fee estimate applied to bucket volume.
	FeeRate = 0.0005

	// WhaleTxThresholdUSD marks a single transaction as a whale trade.
	WhaleTxThresholdUSD = 10_000.0

	// SecondsPerHour and SecondsPerDay size the bucket windows.
	SecondsPerHour int64 = 3600
	SecondsPerDay  int64 = 86400
)

// BucketAggregator recomputes hourly and daily rollups from raw events.
// Buckets are computed wholesale for a window and upserted; the aggregator
// has no notion of adjacent buckets (the scheduler handles carry-forward).
type BucketAggregator struct {
	events storage.RawEventStore
}

// NewBucketAggregator creates a bucket aggregator.
func NewBucketAggregator(events storage.RawEventStore) *BucketAggregator {
	return &BucketAggregator{events: events}
}

// pricedSwaps filters out swaps that never resolved a pool price. Buckets
// are built from priced swaps only; unpriced rows stay in raw_events but
// contribute nothing to any rollup field.
func pricedSwaps(swaps []*domain.ValuedEvent) []*domain.ValuedEvent {
	out := swaps[:0:0]
	for _, s := range swaps {
		if s.Price > 0 {
			out = append(out, s)
		}
	}
	return out
}

// bucketFold is the single-pass accumulation over a window's swap rows.
type bucketFold struct {
	open, high, low, close float64
	lowSet                 bool

	txCount, buyCount, sellCount int64

	volumeToken0, volumeToken1, volumeUSD float64

	addresses map[string]struct{}
	whaleTxs  int64

	liqMin, liqSum, liqMax float64
	liqCount               int64
}

func foldSwaps(swaps []*domain.ValuedEvent) *bucketFold {
	f := &bucketFold{addresses: make(map[string]struct{})}

	for i, s := range swaps {
		if i == 0 {
			f.open = s.Price
		}
		f.close = s.Price
		if s.Price > f.high {
			f.high = s.Price
		}
		// Low considers positive prices only; an all-zero price set
		// falls back to the open.
		if s.Price > 0 && (!f.lowSet || s.Price < f.low) {
			f.low = s.Price
			f.lowSet = true
		}

		f.txCount++
		switch s.Direction {
		case domain.DirectionBuy:
			f.buyCount++
		case domain.DirectionSell:
			f.sellCount++
		}

		f.volumeToken0 += s.Amount0Readable
		f.volumeToken1 += s.Amount1Readable
		if s.USDValue != nil {
			f.volumeUSD += *s.USDValue
			if *s.USDValue > WhaleTxThresholdUSD {
				f.whaleTxs++
			}
		}

		f.addresses[s.Sender.Hex()] = struct{}{}
		f.addresses[s.Recipient.Hex()] = struct{}{}

		if liq := liquidityFloat(s.Liquidity); f.liqCount == 0 {
			f.liqMin, f.liqMax = liq, liq
			f.liqSum, f.liqCount = liq, 1
		} else {
			if liq < f.liqMin {
				f.liqMin = liq
			}
			if liq > f.liqMax {
				f.liqMax = liq
			}
			f.liqSum += liq
			f.liqCount++
		}
	}

	if !f.lowSet {
		f.low = f.open
	}
	return f
}

func liquidityFloat(l *big.Int) float64 {
	if l == nil {
		return 0
	}
	v, _ := new(big.Float).SetInt(l).Float64()
	return v
}

// ComputeHourly builds the hourly bucket starting at bucketStart (Unix
// seconds, top of hour). A window with no swaps yields a zero-filled row.
func (a *BucketAggregator) ComputeHourly(ctx context.Context, bucketStart int64) (*domain.HourlyStats, error) {
	swaps, err := a.events.SwapsInRange(ctx, bucketStart, bucketStart+SecondsPerHour)
	if err != nil {
		return nil, fmt.Errorf("load swaps for hourly bucket %d: %w", bucketStart, err)
	}

	f := foldSwaps(pricedSwaps(swaps))
	out := &domain.HourlyStats{
		BucketStart:     bucketStart,
		OpenPrice:       f.open,
		HighPrice:       f.high,
		LowPrice:        f.low,
		ClosePrice:      f.close,
		TxCount:         f.txCount,
		BuyCount:        f.buyCount,
		SellCount:       f.sellCount,
		VolumeToken0:    f.volumeToken0,
		VolumeToken1:    f.volumeToken1,
		VolumeUSD:       f.volumeUSD,
		EstimatedFee:    f.volumeUSD * FeeRate,
		UniqueAddresses: int64(len(f.addresses)),
		LiquidityMin:    f.liqMin,
		LiquidityMax:    f.liqMax,
	}
	if f.liqCount > 0 {
		out.LiquidityAvg = f.liqSum / float64(f.liqCount)
	}
	return out, nil
}

// ComputeDaily builds the daily bucket starting at bucketStart (Unix
// seconds, midnight UTC). New-address counting compares against the
// immediately preceding day only; an address inactive for more than one day
// counts as new again on its return.
func (a *BucketAggregator) ComputeDaily(ctx context.Context, bucketStart int64) (*domain.DailyStats, error) {
	swaps, err := a.events.SwapsInRange(ctx, bucketStart, bucketStart+SecondsPerDay)
	if err != nil {
		return nil, fmt.Errorf("load swaps for daily bucket %d: %w", bucketStart, err)
	}
	prevSwaps, err := a.events.SwapsInRange(ctx, bucketStart-SecondsPerDay, bucketStart)
	if err != nil {
		return nil, fmt.Errorf("load swaps for prior day of bucket %d: %w", bucketStart, err)
	}

	prevSwaps = pricedSwaps(prevSwaps)
	prevAddrs := make(map[string]struct{}, len(prevSwaps)*2)
	for _, s := range prevSwaps {
		prevAddrs[s.Sender.Hex()] = struct{}{}
		prevAddrs[s.Recipient.Hex()] = struct{}{}
	}

	f := foldSwaps(pricedSwaps(swaps))

	var newAddrs int64
	for addr := range f.addresses {
		if _, seen := prevAddrs[addr]; !seen {
			newAddrs++
		}
	}

	return &domain.DailyStats{
		BucketStart:     bucketStart,
		OpenPrice:       f.open,
		HighPrice:       f.high,
		LowPrice:        f.low,
		ClosePrice:      f.close,
		TxCount:         f.txCount,
		BuyCount:        f.buyCount,
		SellCount:       f.sellCount,
		VolumeToken0:    f.volumeToken0,
		VolumeToken1:    f.volumeToken1,
		VolumeUSD:       f.volumeUSD,
		EstimatedFee:    f.volumeUSD * FeeRate,
		UniqueAddresses: int64(len(f.addresses)),
		NewAddresses:    newAddrs,
		WhaleTxCount:    f.whaleTxs,
	}, nil
}
