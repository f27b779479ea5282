package processing

import (
	"context"
	"fmt"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/valuation"
)

// LiquidityProcessor enriches Mint, Burn, and Collect events.
type LiquidityProcessor struct {
	*enricher
}

// NewLiquidityProcessor creates a new liquidity processor.
func NewLiquidityProcessor(opts ProcessorOptions) *LiquidityProcessor {
	return &LiquidityProcessor{enricher: newEnricher(opts)}
}

// Compile-time interface check.
var _ Processor = (*LiquidityProcessor)(nil)

// SetTokenInfo sets the pool's token pair. Must be called once before
// processing.
func (p *LiquidityProcessor) SetTokenInfo(token0, token1 domain.TokenInfo) {
	p.setTokenInfo(token0, token1)
}

// Process enriches a liquidity event with chain data and USD notional.
// Liquidity events move capital on both legs, so the notional is the sum of
// the resolved sides. Gas cost is not tracked for liquidity events.
func (p *LiquidityProcessor) Process(ctx context.Context, ev *domain.RawEvent) (*domain.ValuedEvent, error) {
	switch ev.Kind {
	case domain.EventMint, domain.EventBurn, domain.EventCollect:
	default:
		return nil, fmt.Errorf("liquidity processor got %s event", ev.Kind)
	}
	token0, token1, err := p.tokenInfo()
	if err != nil {
		return nil, err
	}

	if _, err := p.enrich(ctx, ev); err != nil {
		return nil, err
	}

	return &domain.ValuedEvent{
		RawEvent:        *ev,
		Amount0Readable: valuation.ReadableAmount(ev.Amount0, token0.Decimals),
		Amount1Readable: valuation.ReadableAmount(ev.Amount1, token1.Decimals),
		USDValue:        p.valuer.USDValue(ctx, ev.Amount0, ev.Amount1, token0, token1, valuation.ModeLiquidity),
	}, nil
}
