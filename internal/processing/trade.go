package processing

import (
	"context"
	"fmt"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/valuation"
)

// TradeProcessor enriches Swap events.
type TradeProcessor struct {
	*enricher
}

// NewTradeProcessor creates a new trade processor.
func NewTradeProcessor(opts ProcessorOptions) *TradeProcessor {
	return &TradeProcessor{enricher: newEnricher(opts)}
}

// Compile-time interface check.
var _ Processor = (*TradeProcessor)(nil)

// SetTokenInfo sets the pool's token pair. Must be called once before
// processing.
func (p *TradeProcessor) SetTokenInfo(token0, token1 domain.TokenInfo) {
	p.setTokenInfo(token0, token1)
}

// Process enriches a Swap event with chain data, price, direction, USD
// notional, and gas cost.
func (p *TradeProcessor) Process(ctx context.Context, ev *domain.RawEvent) (*domain.ValuedEvent, error) {
	if ev.Kind != domain.EventSwap {
		return nil, fmt.Errorf("trade processor got %s event", ev.Kind)
	}
	token0, token1, err := p.tokenInfo()
	if err != nil {
		return nil, err
	}

	receipt, err := p.enrich(ctx, ev)
	if err != nil {
		return nil, err
	}

	price, inverse := valuation.PriceFromSqrtPriceX96(ev.SqrtPriceX96)

	valued := &domain.ValuedEvent{
		RawEvent:        *ev,
		Amount0Readable: valuation.ReadableAmount(ev.Amount0, token0.Decimals),
		Amount1Readable: valuation.ReadableAmount(ev.Amount1, token1.Decimals),
		Price:           price,
		PriceInverse:    inverse,
		Direction:       valuation.ClassifySwapDirection(ev.Amount0),
		USDValue:        p.valuer.USDValue(ctx, ev.Amount0, ev.Amount1, token0, token1, valuation.ModeTrade),
	}
	if receipt != nil {
		valued.GasCostWei = receipt.GasCost()
	}
	return valued, nil
}
