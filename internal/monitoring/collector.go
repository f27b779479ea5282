// Package monitoring buffers per-event latency metrics and flushes them in
// batches to the analytics store.
package monitoring

import (
	"context"
	"log"
	"sync"
	"time"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/observability"
	"uniswap-pool-indexer/internal/storage"
)

const (
	// DefaultFlushInterval is the time-based flush period.
	DefaultFlushInterval = 30 * time.Second

	// DefaultFlushThreshold triggers an immediate flush once the buffer
	// reaches this size.
	DefaultFlushThreshold = 1000
)

// Collector buffers EventMetrics and flushes them periodically or when the
// buffer fills. A failed flush re-queues the batch at the front, so a
// transient store outage loses nothing; the buffer grows unbounded while
// the outage lasts.
type Collector struct {
	store     storage.EventMetricStore
	interval  time.Duration
	threshold int
	metrics   *observability.Metrics
	logger    *log.Logger
	now       func() time.Time

	mu     sync.Mutex
	buffer []*domain.EventMetric

	totals struct {
		recorded int64
		failed   int64

		processingMsSum int64
		storageMsSum    int64
		totalMsSum      int64
	}

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// CollectorOptions contains configuration for creating a Collector.
type CollectorOptions struct {
	Store          storage.EventMetricStore
	FlushInterval  time.Duration
	FlushThreshold int
	Metrics        *observability.Metrics
	Logger         *log.Logger
	Now            func() time.Time
}

// NewCollector creates a collector. Call Start to begin the flush loop.
func NewCollector(opts CollectorOptions) *Collector {
	interval := opts.FlushInterval
	if interval == 0 {
		interval = DefaultFlushInterval
	}
	threshold := opts.FlushThreshold
	if threshold == 0 {
		threshold = DefaultFlushThreshold
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Collector{
		store:     opts.Store,
		interval:  interval,
		threshold: threshold,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       now,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// RecordEvent appends a metric to the buffer, flushing immediately when the
// threshold is reached.
func (c *Collector) RecordEvent(ctx context.Context, m *domain.EventMetric) {
	if m == nil {
		return
	}

	c.mu.Lock()
	c.buffer = append(c.buffer, m)
	c.totals.recorded++
	if !m.Success {
		c.totals.failed++
	}
	c.totals.processingMsSum += m.ProcessingLatencyMs()
	c.totals.storageMsSum += m.StorageLatencyMs()
	c.totals.totalMsSum += m.TotalLatencyMs()
	depth := len(c.buffer)
	full := depth >= c.threshold
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.MetricBufferDepth.Set(float64(depth))
	}

	if full {
		c.Flush(ctx)
	}
}

// Flush drains the buffer into the store. On failure the batch is restored
// at the front of the buffer.
func (c *Collector) Flush(ctx context.Context) {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	if err := c.store.InsertBatch(ctx, batch); err != nil {
		c.logger.Printf("[monitoring] flush of %d metrics failed, re-queueing: %v", len(batch), err)
		c.mu.Lock()
		c.buffer = append(batch, c.buffer...)
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.MetricFlushesTotal.WithLabelValues("failed").Inc()
		}
		return
	}
	if c.metrics != nil {
		c.metrics.MetricFlushesTotal.WithLabelValues("ok").Inc()
		c.metrics.MetricBufferDepth.Set(0)
	}
}

// Start launches the time-based flush loop.
func (c *Collector) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.mu.Unlock()

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Flush(ctx)
			case <-c.stop:
				c.Flush(ctx)
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the flush loop after one final flush. No-op when the loop was
// never started.
func (c *Collector) Stop() {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()

	c.stopOnce.Do(func() { close(c.stop) })
	if started {
		<-c.done
	}
}

// SystemMetrics summarizes everything recorded since startup.
type SystemMetrics struct {
	EventsRecorded int64
	EventsFailed   int64
	SuccessRate    float64

	AvgProcessingLatencyMs float64
	AvgStorageLatencyMs    float64
	AvgTotalLatencyMs      float64

	BufferDepth int
}

// GetSystemMetrics returns the running summary. Intended for the query
// layer; cheap to call.
func (c *Collector) GetSystemMetrics() SystemMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := SystemMetrics{
		EventsRecorded: c.totals.recorded,
		EventsFailed:   c.totals.failed,
		BufferDepth:    len(c.buffer),
	}
	if c.totals.recorded > 0 {
		n := float64(c.totals.recorded)
		m.SuccessRate = float64(c.totals.recorded-c.totals.failed) / n
		m.AvgProcessingLatencyMs = float64(c.totals.processingMsSum) / n
		m.AvgStorageLatencyMs = float64(c.totals.storageMsSum) / n
		m.AvgTotalLatencyMs = float64(c.totals.totalMsSum) / n
	}
	return m
}
