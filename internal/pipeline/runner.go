// Package pipeline drains the ingestion channel with a bounded worker pool,
// carrying each event through processing, persistence, and rollups.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"uniswap-pool-indexer/internal/aggregation"
	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/monitoring"
	"uniswap-pool-indexer/internal/observability"
	"uniswap-pool-indexer/internal/processing"
	"uniswap-pool-indexer/internal/storage"
)

// DefaultWorkers is the worker pool size.
const DefaultWorkers = 4

// Runner consumes decoded events and drives them through the pipeline:
// process, persist raw, account rollup, price-history point, event metric.
// A per-event failure is logged and recorded, never fatal to the pool.
type Runner struct {
	events <-chan *domain.RawEvent

	trades    *processing.TradeProcessor
	liquidity *processing.LiquidityProcessor

	raw      storage.RawEventStore
	prices   storage.PriceHistoryStore
	accounts *aggregation.AccountAggregator

	collector *monitoring.Collector
	metrics   *observability.Metrics

	workers int
	logger  *log.Logger
	now     func() time.Time

	wg sync.WaitGroup
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Events <-chan *domain.RawEvent

	Trades    *processing.TradeProcessor
	Liquidity *processing.LiquidityProcessor

	Raw      storage.RawEventStore
	Prices   storage.PriceHistoryStore
	Accounts *aggregation.AccountAggregator

	Collector *monitoring.Collector
	Metrics   *observability.Metrics

	Workers int
	Logger  *log.Logger
	Now     func() time.Time
}

// NewRunner creates a pipeline runner.
func NewRunner(opts RunnerOptions) *Runner {
	workers := opts.Workers
	if workers == 0 {
		workers = DefaultWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Runner{
		events:    opts.Events,
		trades:    opts.Trades,
		liquidity: opts.Liquidity,
		raw:       opts.Raw,
		prices:    opts.Prices,
		accounts:  opts.Accounts,
		collector: opts.Collector,
		metrics:   opts.Metrics,
		workers:   workers,
		logger:    logger,
		now:       now,
	}
}

// Start launches the worker pool. Workers exit when the event channel closes
// or the context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

// Wait blocks until every worker has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.events:
			if !ok {
				return
			}
			r.handle(ctx, ev)
		}
	}
}

// handle carries one event through the pipeline, recording an EventMetric
// for it whether it succeeds or fails.
func (r *Runner) handle(ctx context.Context, ev *domain.RawEvent) {
	metric := &domain.EventMetric{
		TxHash:   ev.TxHash.Hex(),
		LogIndex: ev.LogIndex,
		Kind:     ev.Kind,
		// Seeded from the raw log so a processing failure still records
		// chain time; processing refines it when enrichment succeeds.
		EventTimestamp:  ev.BlockTimestamp * 1000,
		ProcessingStart: r.now().UnixMilli(),
	}

	valued, err := r.process(ctx, ev)
	metric.ProcessingEnd = r.now().UnixMilli()
	if err != nil {
		r.fail(ctx, metric, ev, "process", err)
		return
	}
	metric.EventTimestamp = valued.BlockTimestamp * 1000
	if r.metrics != nil {
		r.metrics.EventsProcessed.WithLabelValues(string(ev.Kind)).Inc()
		r.metrics.EventProcessingLatency.WithLabelValues(string(ev.Kind)).
			Observe(float64(metric.ProcessingLatencyMs()) / 1000)
	}

	metric.StorageStart = r.now().UnixMilli()
	if err := r.raw.Insert(ctx, valued); err != nil {
		metric.StorageEnd = r.now().UnixMilli()
		r.fail(ctx, metric, ev, "store", err)
		return
	}
	if r.metrics != nil {
		r.metrics.EventsStored.WithLabelValues(string(ev.Kind)).Inc()
	}

	if err := r.accounts.Apply(ctx, valued); err != nil {
		metric.StorageEnd = r.now().UnixMilli()
		r.fail(ctx, metric, ev, "account_rollup", err)
		return
	}

	if valued.Kind == domain.EventSwap && valued.Price > 0 {
		point := &domain.PriceHistoryPoint{
			Timestamp:   valued.BlockTimestamp,
			BlockNumber: valued.BlockNumber,
			Price:       valued.Price,
		}
		if err := r.prices.Upsert(ctx, point); err != nil {
			metric.StorageEnd = r.now().UnixMilli()
			r.fail(ctx, metric, ev, "price_history", err)
			return
		}
	}

	metric.StorageEnd = r.now().UnixMilli()
	metric.Success = true
	if r.metrics != nil {
		r.metrics.LastEventTimestamp.Set(float64(valued.BlockTimestamp))
	}
	if r.collector != nil {
		r.collector.RecordEvent(ctx, metric)
	}
}

func (r *Runner) process(ctx context.Context, ev *domain.RawEvent) (*domain.ValuedEvent, error) {
	if ev.Kind == domain.EventSwap {
		return r.trades.Process(ctx, ev)
	}
	return r.liquidity.Process(ctx, ev)
}

func (r *Runner) fail(ctx context.Context, metric *domain.EventMetric, ev *domain.RawEvent, stage string, err error) {
	r.logger.Printf("[pipeline] %s %s/%d failed at %s: %v", ev.Kind, ev.TxHash.Hex(), ev.LogIndex, stage, err)
	metric.Success = false
	metric.Error = err.Error()
	if metric.StorageEnd == 0 {
		metric.StorageEnd = metric.ProcessingEnd
	}
	if r.metrics != nil {
		r.metrics.ProcessingErrors.WithLabelValues(string(ev.Kind), stage).Inc()
	}
	if r.collector != nil {
		r.collector.RecordEvent(ctx, metric)
	}
}
