package aggregation

import (
	"context"
	"fmt"
	"log"
	"time"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

// Resyncer rebuilds every user_stats row from raw event history. Repair and
// backfill path, never the hot path.
type Resyncer struct {
	events storage.RawEventStore
	stats  storage.UserStatsStore
	logger *log.Logger
}

// ResyncOptions contains configuration for creating a Resyncer.
type ResyncOptions struct {
	Events storage.RawEventStore
	Stats  storage.UserStatsStore
	Logger *log.Logger
}

// NewResyncer creates a resyncer.
func NewResyncer(opts ResyncOptions) *Resyncer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Resyncer{
		events: opts.Events,
		stats:  opts.Stats,
		logger: logger,
	}
}

// ResyncResult contains statistics from a full resync.
type ResyncResult struct {
	EventsReplayed  int
	AccountsWritten int
	Duration        time.Duration
}

// SyncAllUserStats replays all raw events in ascending time order, folds
// them into fresh per-account rows in memory, and replaces every stored row.
func (r *Resyncer) SyncAllUserStats(ctx context.Context) (*ResyncResult, error) {
	start := time.Now()

	events, err := r.events.AllAscending(ctx)
	if err != nil {
		return nil, fmt.Errorf("load raw events: %w", err)
	}
	r.logger.Printf("Replaying %d raw events", len(events))

	rebuilt := make(map[string]*domain.UserStats)
	for _, ev := range events {
		c := Contribution(ev)
		if c == nil {
			continue
		}
		existing, ok := rebuilt[c.Address]
		if !ok {
			rebuilt[c.Address] = c
			continue
		}
		mergeInto(existing, c)
	}

	written := 0
	for _, u := range rebuilt {
		if err := r.stats.Replace(ctx, u); err != nil {
			return nil, fmt.Errorf("replace stats for %s: %w", u.Address, err)
		}
		written++
	}

	result := &ResyncResult{
		EventsReplayed:  len(events),
		AccountsWritten: written,
		Duration:        time.Since(start),
	}
	r.logger.Printf("Resync complete: %d events, %d accounts, %s",
		result.EventsReplayed, result.AccountsWritten, result.Duration)
	return result, nil
}

// mergeInto folds a contribution into an accumulated row with the same
// semantics as the store-level merge upsert.
func mergeInto(dst, c *domain.UserStats) {
	dst.TotalTransactions += c.TotalTransactions
	dst.BuyCount += c.BuyCount
	dst.SellCount += c.SellCount
	dst.TotalVolumeUSD += c.TotalVolumeUSD
	dst.LiquidityProvidedUSD += c.LiquidityProvidedUSD
	if c.LargestTxUSD > dst.LargestTxUSD {
		dst.LargestTxUSD = c.LargestTxUSD
	}
	if c.FirstTxAt != 0 && (dst.FirstTxAt == 0 || c.FirstTxAt < dst.FirstTxAt) {
		dst.FirstTxAt = c.FirstTxAt
	}
	if c.LastTxAt > dst.LastTxAt {
		dst.LastTxAt = c.LastTxAt
	}
	dst.IsLiquidityProvider = dst.IsLiquidityProvider || c.IsLiquidityProvider
	switch {
	case dst.UserType == domain.UserTypeLP || c.UserType == domain.UserTypeLP:
		dst.UserType = domain.UserTypeLP
	case c.UserType == domain.UserTypeWhale:
		dst.UserType = domain.UserTypeWhale
	case dst.UserType == domain.UserTypeUnset:
		dst.UserType = c.UserType
	}
}
