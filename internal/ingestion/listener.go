package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/ethereum"
	"uniswap-pool-indexer/internal/observability"
)

// ErrNotListening is returned by Detach for a pool with no active subscription.
var ErrNotListening = errors.New("pool is not being listened to")

// DefaultEventBuffer is the capacity of the decoded event channel.
const DefaultEventBuffer = 1000

// PoolListener manages per-pool log subscriptions. Each attached pool gets
// its own eth_subscribe filter; decoded events from all pools are delivered
// on a single shared channel.
type PoolListener struct {
	ws      ethereum.WSClient
	rpc     ethereum.RPCClient
	metrics *observability.Metrics
	logger  *log.Logger

	mu     sync.Mutex
	subs   map[common.Address]*poolSub
	events chan *domain.RawEvent
	wg     sync.WaitGroup
}

type poolSub struct {
	subID  string
	cancel context.CancelFunc
}

// ListenerOptions contains configuration for creating a PoolListener.
type ListenerOptions struct {
	WS          ethereum.WSClient
	RPC         ethereum.RPCClient
	EventBuffer int
	Metrics     *observability.Metrics
	Logger      *log.Logger
}

// ListenerStatus describes the current subscription set.
type ListenerStatus struct {
	Listening bool
	Pools     []string
	Count     int
}

// NewPoolListener creates a new pool listener.
func NewPoolListener(opts ListenerOptions) *PoolListener {
	buffer := opts.EventBuffer
	if buffer == 0 {
		buffer = DefaultEventBuffer
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &PoolListener{
		ws:      opts.WS,
		rpc:     opts.RPC,
		metrics: opts.Metrics,
		logger:  logger,
		subs:    make(map[common.Address]*poolSub),
		events:  make(chan *domain.RawEvent, buffer),
	}
}

// Events returns the shared delivery channel for decoded events.
func (l *PoolListener) Events() <-chan *domain.RawEvent {
	return l.events
}

// Attach subscribes to logs from a pool contract. The address must be a
// valid hex address with deployed code. Attaching an already-attached pool
// replaces the prior subscription.
func (l *PoolListener) Attach(ctx context.Context, address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid pool address %q", address)
	}
	addr := common.HexToAddress(address)

	code, err := l.rpc.CodeAt(ctx, addr)
	if err != nil {
		return fmt.Errorf("check pool code at %s: %w", addr.Hex(), err)
	}
	if len(code) == 0 {
		return fmt.Errorf("no contract deployed at %s", addr.Hex())
	}

	l.mu.Lock()
	prev, hadPrev := l.subs[addr]
	l.mu.Unlock()
	if hadPrev {
		l.logger.Printf("Replacing existing subscription for pool %s", addr.Hex())
		if err := l.detach(ctx, addr, prev); err != nil {
			l.logger.Printf("Error detaching pool %s: %v", addr.Hex(), err)
		}
	}

	subID, logs, err := l.ws.SubscribeLogs(ctx, ethereum.LogsFilter{
		Addresses: []common.Address{addr},
	})
	if err != nil {
		return fmt.Errorf("subscribe logs for %s: %w", addr.Hex(), err)
	}

	subCtx, cancel := context.WithCancel(context.Background())

	l.mu.Lock()
	l.subs[addr] = &poolSub{subID: subID, cancel: cancel}
	l.mu.Unlock()

	l.wg.Add(1)
	go l.consume(subCtx, addr, logs)

	l.logger.Printf("Attached pool %s (subscription %s)", addr.Hex(), subID)
	return nil
}

// Detach cancels the subscription for a pool. Detaching a pool that is not
// attached returns ErrNotListening.
func (l *PoolListener) Detach(ctx context.Context, address string) error {
	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid pool address %q", address)
	}
	addr := common.HexToAddress(address)

	l.mu.Lock()
	sub, ok := l.subs[addr]
	l.mu.Unlock()
	if !ok {
		return ErrNotListening
	}
	return l.detach(ctx, addr, sub)
}

// DetachAll cancels every active subscription. Idempotent.
func (l *PoolListener) DetachAll(ctx context.Context) {
	l.mu.Lock()
	subs := make(map[common.Address]*poolSub, len(l.subs))
	for addr, sub := range l.subs {
		subs[addr] = sub
	}
	l.mu.Unlock()

	for addr, sub := range subs {
		if err := l.detach(ctx, addr, sub); err != nil {
			l.logger.Printf("Error detaching pool %s: %v", addr.Hex(), err)
		}
	}
	l.wg.Wait()
}

func (l *PoolListener) detach(ctx context.Context, addr common.Address, sub *poolSub) error {
	l.mu.Lock()
	if current, ok := l.subs[addr]; !ok || current != sub {
		l.mu.Unlock()
		return nil
	}
	delete(l.subs, addr)
	l.mu.Unlock()

	sub.cancel()
	if err := l.ws.UnsubscribeLogs(ctx, sub.subID); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", sub.subID, err)
	}
	l.logger.Printf("Detached pool %s", addr.Hex())
	return nil
}

// Status reports the attached pool set.
func (l *PoolListener) Status() ListenerStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	pools := make([]string, 0, len(l.subs))
	for addr := range l.subs {
		pools = append(pools, addr.Hex())
	}
	sort.Strings(pools)

	return ListenerStatus{
		Listening: len(pools) > 0,
		Pools:     pools,
		Count:     len(pools),
	}
}

// consume decodes logs from one subscription until the channel closes or the
// subscription is detached.
func (l *PoolListener) consume(ctx context.Context, addr common.Address, logs <-chan ethereum.Log) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-logs:
			if !ok {
				return
			}
			ev, err := DecodeLog(raw)
			if err != nil {
				if errors.Is(err, ErrUnknownTopic) {
					continue
				}
				l.logger.Printf("Dropping log from pool %s tx=%s: %v", addr.Hex(), raw.TransactionHash, err)
				continue
			}
			if l.metrics != nil {
				l.metrics.EventsDecoded.WithLabelValues(string(ev.Kind)).Inc()
			}
			select {
			case l.events <- ev:
			case <-ctx.Done():
				return
			}
			if l.metrics != nil {
				l.metrics.EventBufferSize.Set(float64(len(l.events)))
			}
		}
	}
}
