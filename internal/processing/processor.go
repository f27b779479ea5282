// Package processing enriches raw pool events into valued events ready for
// storage: block timestamps, true origin accounts, gas costs, and USD
// notionals.
package processing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/ethereum"
	"uniswap-pool-indexer/internal/valuation"
)

// ErrTokenInfoNotSet is returned when a processor runs before SetTokenInfo.
// This is a wiring mistake, fatal at the call site.
var ErrTokenInfoNotSet = errors.New("token info not set")

// Processor converts a RawEvent into a ValuedEvent.
type Processor interface {
	Process(ctx context.Context, ev *domain.RawEvent) (*domain.ValuedEvent, error)
}

// enricher holds the dependencies shared by both processors.
type enricher struct {
	rpc    ethereum.RPCClient
	valuer *valuation.Valuer
	logger *log.Logger

	mu     sync.RWMutex
	token0 domain.TokenInfo
	token1 domain.TokenInfo
	ready  bool
}

// ProcessorOptions contains configuration for creating processors.
type ProcessorOptions struct {
	RPC    ethereum.RPCClient
	Valuer *valuation.Valuer
	Logger *log.Logger
}

func newEnricher(opts ProcessorOptions) *enricher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &enricher{
		rpc:    opts.RPC,
		valuer: opts.Valuer,
		logger: logger,
	}
}

func (e *enricher) setTokenInfo(token0, token1 domain.TokenInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.token0 = token0
	e.token1 = token1
	e.ready = true
}

func (e *enricher) tokenInfo() (domain.TokenInfo, domain.TokenInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return domain.TokenInfo{}, domain.TokenInfo{}, ErrTokenInfoNotSet
	}
	return e.token0, e.token1, nil
}

// enrich fills in the chain-derived fields. Block and receipt lookups go
// through the retrying RPC client; a failure after retries is a hard error
// returned to the caller.
func (e *enricher) enrich(ctx context.Context, ev *domain.RawEvent) (*ethereum.Receipt, error) {
	block, err := e.rpc.BlockByNumber(ctx, ev.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("fetch block %d: %w", ev.BlockNumber, err)
	}
	ev.BlockTimestamp = block.Timestamp

	receipt, err := e.rpc.TransactionReceipt(ctx, ev.TxHash)
	if err != nil {
		return nil, fmt.Errorf("fetch receipt %s: %w", ev.TxHash.Hex(), err)
	}
	if receipt != nil {
		ev.Origin = receipt.From
	} else {
		// Receipt not yet indexed by the node. Fall back to the nominal
		// sender from the log.
		ev.Origin = ev.Sender
		e.logger.Printf("[processing] receipt unavailable for %s, using log sender as origin", ev.TxHash.Hex())
	}
	return receipt, nil
}
