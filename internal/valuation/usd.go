package valuation

import (
	"context"
	"log"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/domain"
)

// ValuationMode selects how the two sides of an event combine into one
// USD figure.
type ValuationMode int

const (
	// ModeTrade averages both resolved sides: a swap's size is one leg.
	ModeTrade ValuationMode = iota
	// ModeLiquidity sums both resolved sides: a liquidity event moves
	// capital on both legs.
	ModeLiquidity
)

// Recognized stable assets on Ethereum mainnet. A stable side is used as
// the USD notional directly, with no price lookup.
var defaultStables = map[common.Address]struct{}{
	common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"): {}, // USDC
	common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"): {}, // USDT
	common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F"): {}, // DAI
}

// DefaultReferenceStable is the quote token for on-chain unit-price quotes.
var DefaultReferenceStable = domain.TokenInfo{
	Address:  common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
	Symbol:   "USDC",
	Decimals: 6,
}

// Valuer resolves USD notionals through tiered sources: stable-asset
// short-circuit, on-chain quoter, external price index. Source failures
// yield a nil value, never an error; callers treat nil as "valuation
// unavailable".
type Valuer struct {
	quoter    *QuoterClient
	index     *IndexClient
	cache     PriceCache
	stables   map[common.Address]struct{}
	reference domain.TokenInfo
	chain     string
	logger    *log.Logger
}

// ValuerOptions configures a Valuer. Quoter and Index may each be nil, in
// which case that source tier is skipped.
type ValuerOptions struct {
	Quoter    *QuoterClient
	Index     *IndexClient
	Cache     PriceCache
	Stables   []common.Address
	Reference *domain.TokenInfo
	Chain     string
	Logger    *log.Logger
}

// NewValuer creates a Valuer.
func NewValuer(opts ValuerOptions) *Valuer {
	stables := defaultStables
	if len(opts.Stables) > 0 {
		stables = make(map[common.Address]struct{}, len(opts.Stables))
		for _, a := range opts.Stables {
			stables[a] = struct{}{}
		}
	}

	reference := DefaultReferenceStable
	if opts.Reference != nil {
		reference = *opts.Reference
	}

	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache(DefaultCacheTTL)
	}

	chain := opts.Chain
	if chain == "" {
		chain = "ethereum"
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Valuer{
		quoter:    opts.Quoter,
		index:     opts.Index,
		cache:     cache,
		stables:   stables,
		reference: reference,
		chain:     chain,
		logger:    logger,
	}
}

// IsStable reports whether the address is a recognized stable asset.
func (v *Valuer) IsStable(addr common.Address) bool {
	_, ok := v.stables[addr]
	return ok
}

// USDValue resolves the USD notional of an event's token deltas.
// Resolution order: stable short-circuit, per-side unit prices (quoter then
// index), one-side fallback, average (trade) or sum (liquidity) when both
// sides resolve. Returns nil when no source resolves.
func (v *Valuer) USDValue(ctx context.Context, amount0, amount1 *big.Int, token0, token1 domain.TokenInfo, mode ValuationMode) *float64 {
	readable0 := ReadableAmount(amount0, token0.Decimals)
	readable1 := ReadableAmount(amount1, token1.Decimals)

	// A stable side is the notional itself.
	if v.IsStable(token0.Address) {
		return &readable0
	}
	if v.IsStable(token1.Address) {
		return &readable1
	}

	var value0, value1 *float64
	if p := v.UnitPriceUSD(ctx, token0); p != nil {
		val := readable0 * *p
		value0 = &val
	}
	if p := v.UnitPriceUSD(ctx, token1); p != nil {
		val := readable1 * *p
		value1 = &val
	}

	switch {
	case value0 != nil && value1 != nil:
		var combined float64
		if mode == ModeLiquidity {
			combined = *value0 + *value1
		} else {
			combined = (*value0 + *value1) / 2
		}
		return &combined
	case value0 != nil:
		return value0
	case value1 != nil:
		return value1
	default:
		return nil
	}
}

// UnitPriceUSD resolves one token's USD unit price through the source
// tiers, consulting and populating the shared cache. Nil means unresolved.
func (v *Valuer) UnitPriceUSD(ctx context.Context, token domain.TokenInfo) *float64 {
	if v.IsStable(token.Address) {
		one := 1.0
		return &one
	}

	key := CacheKey(token.Address, v.reference.Address, "usd")
	if price, ok := v.cache.Get(ctx, key); ok {
		return &price
	}

	if v.quoter != nil {
		price, err := v.quoter.UnitPrice(ctx, token.Address, v.reference.Address, token.Decimals, v.reference.Decimals)
		if err == nil {
			v.cache.Set(ctx, key, price)
			return &price
		}
		v.logger.Printf("[valuation] quoter failed for %s (%s): %v", token.Symbol, token.Address.Hex(), err)
	}

	if v.index != nil {
		if token.Symbol != "" {
			price, err := v.index.PriceBySymbol(ctx, token.Symbol)
			if err == nil {
				v.cache.Set(ctx, key, price)
				return &price
			}
			v.logger.Printf("[valuation] index by symbol failed for %s: %v", token.Symbol, err)
		}

		price, err := v.index.PriceByContract(ctx, v.chain, token.Address)
		if err == nil {
			v.cache.Set(ctx, key, price)
			return &price
		}
		v.logger.Printf("[valuation] index by contract failed for %s: %v", token.Address.Hex(), err)
	}

	return nil
}
