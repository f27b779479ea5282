package aggregation

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage"
)

const (
	// WhaleAccountThresholdUSD classifies a single transaction's account
	// as WHALE.
	WhaleAccountThresholdUSD = 100_000.0

	// RetailThresholdUSD classifies a small transaction's account as
	// RETAIL when it has no prior classification.
	RetailThresholdUSD = 100.0
)

// AccountAggregator folds one event at a time into user_stats via the
// store's merge upsert.
type AccountAggregator struct {
	stats storage.UserStatsStore
}

// NewAccountAggregator creates an account aggregator.
func NewAccountAggregator(stats storage.UserStatsStore) *AccountAggregator {
	return &AccountAggregator{stats: stats}
}

// Apply merges one event's contribution into the account's row.
func (a *AccountAggregator) Apply(ctx context.Context, ev *domain.ValuedEvent) error {
	contribution := Contribution(ev)
	if contribution == nil {
		return nil
	}
	if err := a.stats.Merge(ctx, contribution); err != nil {
		return fmt.Errorf("merge stats for %s: %w", contribution.Address, err)
	}
	return nil
}

// Contribution builds the single-event UserStats delta. The account is the
// transaction origin when known, falling back to the log's nominal sender.
// Classification follows a priority rule: liquidity events mark LP (sticky
// in the merge), a swap above the whale threshold marks WHALE, a swap below
// the retail threshold marks RETAIL (only fills an unset type in the merge),
// anything in between stays unset.
func Contribution(ev *domain.ValuedEvent) *domain.UserStats {
	addr := ev.Origin
	if addr == (common.Address{}) {
		addr = ev.Sender
	}
	if addr == (common.Address{}) {
		return nil
	}

	var usd float64
	if ev.USDValue != nil {
		usd = *ev.USDValue
	}

	u := &domain.UserStats{
		Address:           addr.Hex(),
		TotalTransactions: 1,
		LargestTxUSD:      usd,
		FirstTxAt:         ev.BlockTimestamp,
		LastTxAt:          ev.BlockTimestamp,
	}

	switch ev.Kind {
	case domain.EventSwap:
		u.TotalVolumeUSD = usd
		switch ev.Direction {
		case domain.DirectionBuy:
			u.BuyCount = 1
		case domain.DirectionSell:
			u.SellCount = 1
		}
		switch {
		case usd > WhaleAccountThresholdUSD:
			u.UserType = domain.UserTypeWhale
		case ev.USDValue != nil && usd < RetailThresholdUSD:
			u.UserType = domain.UserTypeRetail
		}
	case domain.EventMint, domain.EventBurn, domain.EventCollect:
		u.IsLiquidityProvider = true
		u.LiquidityProvidedUSD = usd
		u.UserType = domain.UserTypeLP
	default:
		return nil
	}

	return u
}
