// Package scheduler drives the periodic jobs: hourly snapshots and rollups,
// daily rollups, and the daily integrity battery. Timers are aligned to
// wall-clock boundaries so buckets land on the hour and midnight UTC.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"uniswap-pool-indexer/internal/aggregation"
	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/observability"
	"uniswap-pool-indexer/internal/storage"
)

// SnapshotTaker captures one pool snapshot.
type SnapshotTaker interface {
	Take(ctx context.Context) (*domain.PoolSnapshot, error)
}

// IntegrityRunner runs the full integrity battery, persisting each result.
type IntegrityRunner interface {
	RunAll(ctx context.Context) []*domain.IntegrityCheckResult
}

// Scheduler owns two timer chains. Each chain arms a one-shot timer to the
// next boundary, runs its job, then re-arms as a fixed-period ticker, so a
// fixed-rate tick never drifts off the boundary.
type Scheduler struct {
	aggregator *aggregation.BucketAggregator
	hourly     storage.HourlyStatsStore
	daily      storage.DailyStatsStore
	snapshots  SnapshotTaker
	integrity  IntegrityRunner
	metrics    *observability.Metrics
	logger     *log.Logger
	now        func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Options contains configuration for creating a Scheduler.
type Options struct {
	Aggregator *aggregation.BucketAggregator
	Hourly     storage.HourlyStatsStore
	Daily      storage.DailyStatsStore
	Snapshots  SnapshotTaker
	Integrity  IntegrityRunner
	Metrics    *observability.Metrics
	Logger     *log.Logger
	Now        func() time.Time
}

// New creates a scheduler.
func New(opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		aggregator: opts.Aggregator,
		hourly:     opts.Hourly,
		daily:      opts.Daily,
		snapshots:  opts.Snapshots,
		integrity:  opts.Integrity,
		metrics:    opts.Metrics,
		logger:     logger,
		now:        now,
	}
}

// Start arms both timer chains. Calling Start on a running scheduler is a
// no-op. Restart after Stop is supported.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	nowTime := s.now()
	s.logger.Printf("Scheduler started: hourly in %s, daily in %s",
		untilNextHour(nowTime).Round(time.Second), untilNextMidnightUTC(nowTime).Round(time.Second))

	s.wg.Add(2)
	go s.runChain(ctx, stop, untilNextHour(nowTime), time.Hour, "hourly", s.RunHourlyJob)
	go s.runChain(ctx, stop, untilNextMidnightUTC(nowTime), 24*time.Hour, "daily", s.RunDailyJob)
}

// Stop cancels both timer chains. An in-flight job runs to completion; only
// its recurrence is prevented.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Printf("Scheduler stopped")
}

func (s *Scheduler) runChain(ctx context.Context, stop chan struct{}, initial, period time.Duration, name string, job func(context.Context) error) {
	defer s.wg.Done()

	timer := time.NewTimer(initial)
	select {
	case <-timer.C:
	case <-stop:
		timer.Stop()
		return
	case <-ctx.Done():
		timer.Stop()
		return
	}

	s.runJob(ctx, name, job)

	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runJob(ctx, name, job)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runJob isolates a job failure: it is logged, never stops the chain.
func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) error) {
	status := "ok"
	if err := job(ctx); err != nil {
		status = "error"
		s.logger.Printf("[scheduler] %s job failed: %v", name, err)
	}
	if s.metrics != nil {
		s.metrics.ScheduledJobsTotal.WithLabelValues(name, status).Inc()
	}
}

// RunHourlyJob takes a pool snapshot, then recomputes and upserts the
// previous hour's bucket with carry-forward.
func (s *Scheduler) RunHourlyJob(ctx context.Context) error {
	if s.snapshots != nil {
		if _, err := s.snapshots.Take(ctx); err != nil {
			// Snapshot failure must not block the rollup.
			s.logger.Printf("[scheduler] hourly snapshot failed: %v", err)
		}
	}

	bucket := s.now().UTC().Truncate(time.Hour).Add(-time.Hour).Unix()
	stats, err := s.aggregator.ComputeHourly(ctx, bucket)
	if err != nil {
		return fmt.Errorf("compute hourly bucket %d: %w", bucket, err)
	}

	if stats.TxCount == 0 {
		s.carryForwardHourly(ctx, stats)
	}

	if err := s.hourly.Upsert(ctx, stats); err != nil {
		return fmt.Errorf("upsert hourly bucket %d: %w", bucket, err)
	}
	s.logger.Printf("Hourly rollup upserted: bucket=%d tx=%d volume_usd=%.2f", bucket, stats.TxCount, stats.VolumeUSD)
	return nil
}

// RunDailyJob recomputes and upserts the previous calendar day's bucket with
// carry-forward, then runs the full integrity battery.
func (s *Scheduler) RunDailyJob(ctx context.Context) error {
	bucket := midnightUTC(s.now()).Add(-24 * time.Hour).Unix()
	stats, err := s.aggregator.ComputeDaily(ctx, bucket)
	if err != nil {
		return fmt.Errorf("compute daily bucket %d: %w", bucket, err)
	}

	if stats.TxCount == 0 {
		s.carryForwardDaily(ctx, stats)
	}

	if err := s.daily.Upsert(ctx, stats); err != nil {
		return fmt.Errorf("upsert daily bucket %d: %w", bucket, err)
	}
	s.logger.Printf("Daily rollup upserted: bucket=%d tx=%d volume_usd=%.2f", bucket, stats.TxCount, stats.VolumeUSD)

	if s.integrity != nil {
		results := s.integrity.RunAll(ctx)
		failed := 0
		for _, r := range results {
			if !r.Passed {
				failed++
			}
		}
		s.logger.Printf("Integrity battery complete: %d checks, %d failed", len(results), failed)
	}
	return nil
}

// carryForwardHourly fills an empty bucket's OHLC with the prior bucket's
// close price.
func (s *Scheduler) carryForwardHourly(ctx context.Context, stats *domain.HourlyStats) {
	prev, err := s.hourly.Get(ctx, stats.BucketStart-int64(time.Hour/time.Second))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Printf("[scheduler] carry-forward lookup failed for bucket %d: %v", stats.BucketStart, err)
		}
		return
	}
	stats.OpenPrice = prev.ClosePrice
	stats.HighPrice = prev.ClosePrice
	stats.LowPrice = prev.ClosePrice
	stats.ClosePrice = prev.ClosePrice
}

// carryForwardDaily fills an empty day's OHLC with the prior day's close.
func (s *Scheduler) carryForwardDaily(ctx context.Context, stats *domain.DailyStats) {
	prev, err := s.daily.Get(ctx, stats.BucketStart-int64(24*time.Hour/time.Second))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Printf("[scheduler] carry-forward lookup failed for bucket %d: %v", stats.BucketStart, err)
		}
		return
	}
	stats.OpenPrice = prev.ClosePrice
	stats.HighPrice = prev.ClosePrice
	stats.LowPrice = prev.ClosePrice
	stats.ClosePrice = prev.ClosePrice
}

func untilNextHour(now time.Time) time.Duration {
	return now.Truncate(time.Hour).Add(time.Hour).Sub(now)
}

func midnightUTC(now time.Time) time.Time {
	utc := now.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

func untilNextMidnightUTC(now time.Time) time.Duration {
	return midnightUTC(now).Add(24 * time.Hour).Sub(now.UTC())
}
