package valuation

import (
	"context"
	"errors"
	"io"
	"log"
	"math"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/domain"
)

var (
	usdcToken = domain.TokenInfo{Address: DefaultReferenceStable.Address, Symbol: "USDC", Decimals: 6}
	wethToken = domain.TokenInfo{
		Address:  common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"),
		Symbol:   "WETH",
		Decimals: 18,
	}
	abcToken = domain.TokenInfo{
		Address:  common.HexToAddress("0x000000000000000000000000000000000000abc1"),
		Symbol:   "ABC",
		Decimals: 18,
	}
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// unitQuotes builds a quoter RPC that prices whole units of known tokens in
// reference-stable decimals and reverts for everything else.
func unitQuotes(t *testing.T, prices map[common.Address]float64) *quoteRPC {
	t.Helper()
	return &quoteRPC{handler: func(_ common.Address, data []byte) ([]byte, error) {
		tokenIn := common.BytesToAddress(data[4+12 : 4+32])
		price, ok := prices[tokenIn]
		if !ok {
			return nil, errors.New("execution reverted")
		}
		out := big.NewInt(int64(price * 1e6))
		return common.LeftPadBytes(out.Bytes(), 32), nil
	}}
}

func wholeTokens(n int64, decimals uint8) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

func TestValuer_StableShortCircuit(t *testing.T) {
	// No quoter, no index: the stable side must still resolve.
	v := NewValuer(ValuerOptions{Logger: quietLogger()})

	got := v.USDValue(context.Background(), big.NewInt(-2_000_000_000), wholeTokens(1, 18), usdcToken, wethToken, ModeTrade)
	if got == nil || math.Abs(*got-2000) > 1e-9 {
		t.Errorf("USDValue = %v, want 2000 from the stable side", got)
	}

	// Stable on the other side.
	got = v.USDValue(context.Background(), wholeTokens(1, 18), big.NewInt(500_000_000), wethToken, usdcToken, ModeLiquidity)
	if got == nil || math.Abs(*got-500) > 1e-9 {
		t.Errorf("USDValue = %v, want 500 from the stable side", got)
	}
}

func TestValuer_UnitPriceUSD_StableIsOne(t *testing.T) {
	v := NewValuer(ValuerOptions{Logger: quietLogger()})
	p := v.UnitPriceUSD(context.Background(), usdcToken)
	if p == nil || *p != 1.0 {
		t.Errorf("UnitPriceUSD(stable) = %v, want 1.0", p)
	}
}

func TestValuer_QuoterResolvesAndCaches(t *testing.T) {
	rpc := unitQuotes(t, map[common.Address]float64{wethToken.Address: 2000})
	v := NewValuer(ValuerOptions{
		Quoter: NewQuoterClient(rpc, quoterAddr, nil),
		Logger: quietLogger(),
	})

	p := v.UnitPriceUSD(context.Background(), wethToken)
	if p == nil || math.Abs(*p-2000) > 1e-9 {
		t.Fatalf("UnitPriceUSD = %v, want 2000", p)
	}
	callsAfterFirst := rpc.calls

	p = v.UnitPriceUSD(context.Background(), wethToken)
	if p == nil || math.Abs(*p-2000) > 1e-9 {
		t.Fatalf("cached UnitPriceUSD = %v, want 2000", p)
	}
	if rpc.calls != callsAfterFirst {
		t.Errorf("second lookup hit the quoter (%d calls, want %d)", rpc.calls, callsAfterFirst)
	}
}

func TestValuer_IndexFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"usd": 1500.0}`))
	}))
	defer srv.Close()

	failing := &quoteRPC{handler: func(common.Address, []byte) ([]byte, error) {
		return nil, errors.New("execution reverted")
	}}
	v := NewValuer(ValuerOptions{
		Quoter: NewQuoterClient(failing, quoterAddr, nil),
		Index:  NewIndexClient(srv.URL, WithIndexRetryPolicy(noRetry)),
		Logger: quietLogger(),
	})

	p := v.UnitPriceUSD(context.Background(), wethToken)
	if p == nil || *p != 1500.0 {
		t.Errorf("UnitPriceUSD = %v, want 1500 from the index", p)
	}
}

func TestValuer_TradeAveragesLiquiditySums(t *testing.T) {
	rpc := unitQuotes(t, map[common.Address]float64{
		wethToken.Address: 10,
		abcToken.Address:  20,
	})
	v := NewValuer(ValuerOptions{
		Quoter: NewQuoterClient(rpc, quoterAddr, nil),
		Logger: quietLogger(),
	})

	// 2 WETH at $10 and 3 ABC at $20: sides are worth 20 and 60.
	amount0 := wholeTokens(2, 18)
	amount1 := wholeTokens(3, 18)

	trade := v.USDValue(context.Background(), amount0, amount1, wethToken, abcToken, ModeTrade)
	if trade == nil || math.Abs(*trade-40) > 1e-9 {
		t.Errorf("trade USDValue = %v, want 40 (average)", trade)
	}

	liq := v.USDValue(context.Background(), amount0, amount1, wethToken, abcToken, ModeLiquidity)
	if liq == nil || math.Abs(*liq-80) > 1e-9 {
		t.Errorf("liquidity USDValue = %v, want 80 (sum)", liq)
	}
}

func TestValuer_OneSideFallback(t *testing.T) {
	rpc := unitQuotes(t, map[common.Address]float64{wethToken.Address: 10})
	v := NewValuer(ValuerOptions{
		Quoter: NewQuoterClient(rpc, quoterAddr, nil),
		Logger: quietLogger(),
	})

	got := v.USDValue(context.Background(), wholeTokens(2, 18), wholeTokens(3, 18), wethToken, abcToken, ModeTrade)
	if got == nil || math.Abs(*got-20) > 1e-9 {
		t.Errorf("USDValue = %v, want 20 from the resolved side alone", got)
	}
}

func TestValuer_NoSourceResolves(t *testing.T) {
	v := NewValuer(ValuerOptions{Logger: quietLogger()})
	if got := v.USDValue(context.Background(), wholeTokens(1, 18), wholeTokens(1, 18), wethToken, abcToken, ModeTrade); got != nil {
		t.Errorf("USDValue = %v, want nil with no sources", *got)
	}
}
