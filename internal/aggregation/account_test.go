package aggregation

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/storage/memory"
)

const statsAddr = "0x00000000000000000000000000000000000000aa"

func valuedEvent(kind domain.EventKind, ts int64, usd *float64, dir domain.SwapDirection) *domain.ValuedEvent {
	return &domain.ValuedEvent{
		RawEvent: domain.RawEvent{
			Kind:           kind,
			TxHash:         common.BigToHash(big.NewInt(ts)),
			BlockTimestamp: ts,
			Origin:         common.HexToAddress(statsAddr),
			Amount0:        big.NewInt(1),
			Amount1:        big.NewInt(1),
		},
		Direction: dir,
		USDValue:  usd,
	}
}

func TestAccountAggregator_SwapContribution(t *testing.T) {
	store := memory.NewUserStatsStore()
	agg := NewAccountAggregator(store)
	ctx := context.Background()

	if err := agg.Apply(ctx, valuedEvent(domain.EventSwap, 1000, f64(250), domain.DirectionBuy)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := agg.Apply(ctx, valuedEvent(domain.EventSwap, 2000, f64(900), domain.DirectionSell)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	u, err := store.Get(ctx, common.HexToAddress(statsAddr).Hex())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.TotalTransactions != 2 || u.BuyCount != 1 || u.SellCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", u.TotalTransactions, u.BuyCount, u.SellCount)
	}
	if u.TotalVolumeUSD != 1150 {
		t.Errorf("TotalVolumeUSD = %v, want 1150", u.TotalVolumeUSD)
	}
	if u.LargestTxUSD != 900 {
		t.Errorf("LargestTxUSD = %v, want 900", u.LargestTxUSD)
	}
	if u.FirstTxAt != 1000 || u.LastTxAt != 2000 {
		t.Errorf("first/last = %d/%d, want 1000/2000", u.FirstTxAt, u.LastTxAt)
	}
	// Mid-range sizes stay unclassified.
	if u.UserType != domain.UserTypeUnset {
		t.Errorf("UserType = %q, want unset", u.UserType)
	}
}

func TestAccountAggregator_LiquidityProviderScenario(t *testing.T) {
	store := memory.NewUserStatsStore()
	agg := NewAccountAggregator(store)
	ctx := context.Background()

	// Mint 500 then Burn 700 on the same address.
	if err := agg.Apply(ctx, valuedEvent(domain.EventMint, 1000, f64(500), "")); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := agg.Apply(ctx, valuedEvent(domain.EventBurn, 2000, f64(700), "")); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	u, err := store.Get(ctx, common.HexToAddress(statsAddr).Hex())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.LiquidityProvidedUSD != 1200 {
		t.Errorf("LiquidityProvidedUSD = %v, want 1200", u.LiquidityProvidedUSD)
	}
	if !u.IsLiquidityProvider {
		t.Error("IsLiquidityProvider = false, want true")
	}
	if u.UserType != domain.UserTypeLP {
		t.Errorf("UserType = %q, want LP", u.UserType)
	}

	// A later whale-sized swap must not displace the LP classification.
	if err := agg.Apply(ctx, valuedEvent(domain.EventSwap, 3000, f64(500_000), domain.DirectionBuy)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	u, err = store.Get(ctx, common.HexToAddress(statsAddr).Hex())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.UserType != domain.UserTypeLP {
		t.Errorf("UserType = %q after whale swap, want LP (sticky)", u.UserType)
	}
}

func TestAccountAggregator_Classification(t *testing.T) {
	tests := []struct {
		name string
		usd  *float64
		want domain.UserType
	}{
		{"whale above threshold", f64(150_000), domain.UserTypeWhale},
		{"retail below threshold", f64(50), domain.UserTypeRetail},
		{"mid-range unset", f64(5_000), domain.UserTypeUnset},
		{"unpriced unset", nil, domain.UserTypeUnset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Contribution(valuedEvent(domain.EventSwap, 1000, tt.usd, domain.DirectionBuy))
			if c.UserType != tt.want {
				t.Errorf("UserType = %q, want %q", c.UserType, tt.want)
			}
		})
	}
}

func TestAccountAggregator_RetailDoesNotDowngradeWhale(t *testing.T) {
	store := memory.NewUserStatsStore()
	agg := NewAccountAggregator(store)
	ctx := context.Background()

	if err := agg.Apply(ctx, valuedEvent(domain.EventSwap, 1000, f64(200_000), domain.DirectionBuy)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := agg.Apply(ctx, valuedEvent(domain.EventSwap, 2000, f64(10), domain.DirectionSell)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	u, err := store.Get(ctx, common.HexToAddress(statsAddr).Hex())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.UserType != domain.UserTypeWhale {
		t.Errorf("UserType = %q, want WHALE retained", u.UserType)
	}
}

func TestAccountAggregator_OriginFallsBackToSender(t *testing.T) {
	ev := valuedEvent(domain.EventSwap, 1000, f64(50), domain.DirectionBuy)
	ev.Origin = common.Address{}
	ev.Sender = common.HexToAddress("0x00000000000000000000000000000000000000bb")

	c := Contribution(ev)
	if c == nil {
		t.Fatal("Contribution returned nil")
	}
	if c.Address != ev.Sender.Hex() {
		t.Errorf("Address = %s, want sender fallback", c.Address)
	}
}

func TestResyncer_RebuildsFromHistory(t *testing.T) {
	events := memory.NewRawEventStore()
	stats := memory.NewUserStatsStore()
	ctx := context.Background()

	raw := []*domain.ValuedEvent{
		valuedEvent(domain.EventSwap, 1000, f64(300), domain.DirectionBuy),
		valuedEvent(domain.EventMint, 2000, f64(500), ""),
		valuedEvent(domain.EventSwap, 3000, f64(700), domain.DirectionSell),
	}
	for i, ev := range raw {
		ev.LogIndex = uint(i)
		if err := events.Insert(ctx, ev); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// Seed a stale row the resync must overwrite.
	if err := stats.Replace(ctx, &domain.UserStats{
		Address:           common.HexToAddress(statsAddr).Hex(),
		TotalTransactions: 999,
	}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	r := NewResyncer(ResyncOptions{Events: events, Stats: stats})
	result, err := r.SyncAllUserStats(ctx)
	if err != nil {
		t.Fatalf("SyncAllUserStats failed: %v", err)
	}
	if result.EventsReplayed != 3 || result.AccountsWritten != 1 {
		t.Errorf("result = %+v, want 3 events, 1 account", result)
	}

	u, err := stats.Get(ctx, common.HexToAddress(statsAddr).Hex())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if u.TotalTransactions != 3 {
		t.Errorf("TotalTransactions = %d, want 3", u.TotalTransactions)
	}
	if u.TotalVolumeUSD != 1000 {
		t.Errorf("TotalVolumeUSD = %v, want 1000", u.TotalVolumeUSD)
	}
	if u.LiquidityProvidedUSD != 500 {
		t.Errorf("LiquidityProvidedUSD = %v, want 500", u.LiquidityProvidedUSD)
	}
	if u.UserType != domain.UserTypeLP {
		t.Errorf("UserType = %q, want LP", u.UserType)
	}
}
