// Package integrity reconciles derived state against raw state: block gaps,
// duplicate keys, price-history consistency, ordering, and user-stats drift.
package integrity

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/observability"
	"uniswap-pool-indexer/internal/storage"
)

const (
	// MaxBlockGap is the largest tolerated gap between adjacent swap
	// block numbers before gap detection flags the pair.
	MaxBlockGap = 10

	// ReconcileSampleLimit bounds the number of user-stats mismatches
	// reported per run.
	ReconcileSampleLimit = 20

	CheckBlockGaps        = "block_gaps"
	CheckDuplicateKeys    = "duplicate_keys"
	CheckPriceHistory     = "price_history"
	CheckOrdering         = "block_timestamp_ordering"
	CheckCrossConsistency = "swap_price_cross_consistency"
	CheckUserStats        = "user_stats_reconciliation"
)

// Checker runs the integrity battery. Checks are independent: a query error
// downgrades that check to a failed result, never aborts the batch.
type Checker struct {
	events  storage.RawEventStore
	prices  storage.PriceHistoryStore
	stats   storage.UserStatsStore
	results storage.IntegrityStore
	metrics *observability.Metrics
	logger  *log.Logger
	now     func() time.Time
}

// CheckerOptions contains configuration for creating a Checker.
type CheckerOptions struct {
	Events  storage.RawEventStore
	Prices  storage.PriceHistoryStore
	Stats   storage.UserStatsStore
	Results storage.IntegrityStore
	Metrics *observability.Metrics
	Logger  *log.Logger
	Now     func() time.Time
}

// NewChecker creates an integrity checker.
func NewChecker(opts CheckerOptions) *Checker {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Checker{
		events:  opts.Events,
		prices:  opts.Prices,
		stats:   opts.Stats,
		results: opts.Results,
		metrics: opts.Metrics,
		logger:  logger,
		now:     now,
	}
}

// RunAll runs every check, persisting each result when a result store is
// configured. Always returns all results.
func (c *Checker) RunAll(ctx context.Context) []*domain.IntegrityCheckResult {
	checks := []func(context.Context) *domain.IntegrityCheckResult{
		c.CheckBlockGaps,
		c.CheckDuplicateKeys,
		c.CheckPriceHistory,
		c.CheckOrdering,
		c.CheckCrossConsistency,
		c.CheckUserStats,
	}

	results := make([]*domain.IntegrityCheckResult, 0, len(checks))
	for _, check := range checks {
		r := check(ctx)
		results = append(results, r)
		if !r.Passed {
			c.logger.Printf("[integrity] %s failed: %s", r.CheckType, r.Details)
		}
		if c.metrics != nil {
			outcome := "passed"
			if !r.Passed {
				outcome = "failed"
			}
			c.metrics.IntegrityChecksTotal.WithLabelValues(r.CheckType, outcome).Inc()
		}
		if c.results != nil {
			if err := c.results.Insert(ctx, r); err != nil {
				c.logger.Printf("[integrity] persist %s result: %v", r.CheckType, err)
			}
		}
	}
	return results
}

// failed is the downgrade shape for a check whose own queries errored.
func (c *Checker) failed(checkType string, err error) *domain.IntegrityCheckResult {
	return &domain.IntegrityCheckResult{
		CheckType: checkType,
		RunAt:     c.now().Unix(),
		Passed:    false,
		Issues: []domain.IntegrityIssue{{
			Severity: domain.SeverityError,
			Message:  fmt.Sprintf("check query failed: %v", err),
		}},
		Details: err.Error(),
	}
}

func (c *Checker) result(checkType string, issues []domain.IntegrityIssue, details string) *domain.IntegrityCheckResult {
	return &domain.IntegrityCheckResult{
		CheckType: checkType,
		RunAt:     c.now().Unix(),
		Passed:    len(issues) == 0,
		Issues:    issues,
		Details:   details,
	}
}

// CheckBlockGaps flags adjacent-by-block-number swap pairs whose block gap
// exceeds MaxBlockGap.
func (c *Checker) CheckBlockGaps(ctx context.Context) *domain.IntegrityCheckResult {
	swaps, err := c.events.SwapsByBlockOrder(ctx, 0)
	if err != nil {
		return c.failed(CheckBlockGaps, err)
	}

	var gaps int64
	var maxGap int64
	for i := 1; i < len(swaps); i++ {
		gap := swaps[i].BlockNumber - swaps[i-1].BlockNumber
		if gap > MaxBlockGap {
			gaps++
			if gap > maxGap {
				maxGap = gap
			}
		}
	}

	var issues []domain.IntegrityIssue
	if gaps > 0 {
		issues = append(issues, domain.IntegrityIssue{
			Severity:      domain.SeverityWarning,
			Message:       fmt.Sprintf("%d block gaps exceed %d blocks, max gap %d", gaps, MaxBlockGap, maxGap),
			AffectedCount: gaps,
		})
	}
	return c.result(CheckBlockGaps, issues, fmt.Sprintf("%d swaps scanned", len(swaps)))
}

// CheckDuplicateKeys reports natural keys with more than one raw row. A hit
// indicates a key-constraint failure upstream, so it is error severity.
func (c *Checker) CheckDuplicateKeys(ctx context.Context) *domain.IntegrityCheckResult {
	dupes, err := c.events.DuplicateKeys(ctx)
	if err != nil {
		return c.failed(CheckDuplicateKeys, err)
	}

	var issues []domain.IntegrityIssue
	if len(dupes) > 0 {
		issues = append(issues, domain.IntegrityIssue{
			Severity:      domain.SeverityError,
			Message:       fmt.Sprintf("%d duplicated (tx_hash, log_index) keys", len(dupes)),
			AffectedCount: int64(len(dupes)),
		})
	}
	return c.result(CheckDuplicateKeys, issues, fmt.Sprintf("%d duplicate keys", len(dupes)))
}

// CheckPriceHistory flags orphaned price points with no matching swap
// timestamp and points with non-positive prices.
func (c *Checker) CheckPriceHistory(ctx context.Context) *domain.IntegrityCheckResult {
	points, err := c.prices.All(ctx)
	if err != nil {
		return c.failed(CheckPriceHistory, err)
	}
	swapTimes, err := c.events.PricedSwapTimestamps(ctx)
	if err != nil {
		return c.failed(CheckPriceHistory, err)
	}

	known := make(map[int64]struct{}, len(swapTimes))
	for _, ts := range swapTimes {
		known[ts] = struct{}{}
	}

	var orphans, nonPositive int64
	for _, p := range points {
		if _, ok := known[p.Timestamp]; !ok {
			orphans++
		}
		if p.Price <= 0 {
			nonPositive++
		}
	}

	var issues []domain.IntegrityIssue
	if orphans > 0 {
		issues = append(issues, domain.IntegrityIssue{
			Severity:      domain.SeverityWarning,
			Message:       fmt.Sprintf("%d price points with no matching swap timestamp", orphans),
			AffectedCount: orphans,
		})
	}
	if nonPositive > 0 {
		issues = append(issues, domain.IntegrityIssue{
			Severity:      domain.SeverityError,
			Message:       fmt.Sprintf("%d price points with non-positive price", nonPositive),
			AffectedCount: nonPositive,
		})
	}
	return c.result(CheckPriceHistory, issues, fmt.Sprintf("%d points scanned", len(points)))
}

// CheckOrdering flags swaps whose timestamp precedes a lower-block-numbered
// predecessor's timestamp.
func (c *Checker) CheckOrdering(ctx context.Context) *domain.IntegrityCheckResult {
	swaps, err := c.events.SwapsByBlockOrder(ctx, 0)
	if err != nil {
		return c.failed(CheckOrdering, err)
	}

	var violations int64
	for i := 1; i < len(swaps); i++ {
		if swaps[i].BlockNumber > swaps[i-1].BlockNumber &&
			swaps[i].BlockTimestamp < swaps[i-1].BlockTimestamp {
			violations++
		}
	}

	var issues []domain.IntegrityIssue
	if violations > 0 {
		issues = append(issues, domain.IntegrityIssue{
			Severity:      domain.SeverityWarning,
			Message:       fmt.Sprintf("%d swaps with timestamp earlier than a lower block's", violations),
			AffectedCount: violations,
		})
	}
	return c.result(CheckOrdering, issues, fmt.Sprintf("%d swaps scanned", len(swaps)))
}

// CheckCrossConsistency flags priced swaps lacking a price-history row.
func (c *Checker) CheckCrossConsistency(ctx context.Context) *domain.IntegrityCheckResult {
	swapTimes, err := c.events.PricedSwapTimestamps(ctx)
	if err != nil {
		return c.failed(CheckCrossConsistency, err)
	}
	points, err := c.prices.All(ctx)
	if err != nil {
		return c.failed(CheckCrossConsistency, err)
	}

	recorded := make(map[int64]struct{}, len(points))
	for _, p := range points {
		recorded[p.Timestamp] = struct{}{}
	}

	var missing int64
	for _, ts := range swapTimes {
		if _, ok := recorded[ts]; !ok {
			missing++
		}
	}

	var issues []domain.IntegrityIssue
	if missing > 0 {
		issues = append(issues, domain.IntegrityIssue{
			Severity:      domain.SeverityWarning,
			Message:       fmt.Sprintf("%d priced swaps lack a price-history row", missing),
			AffectedCount: missing,
		})
	}
	return c.result(CheckCrossConsistency, issues, fmt.Sprintf("%d priced swaps scanned", len(swapTimes)))
}

// CheckUserStats compares stored total_transactions against a fresh count of
// raw swap rows per sender, reporting at most ReconcileSampleLimit
// mismatches.
func (c *Checker) CheckUserStats(ctx context.Context) *domain.IntegrityCheckResult {
	counts, err := c.events.SwapCountsBySender(ctx)
	if err != nil {
		return c.failed(CheckUserStats, err)
	}
	rows, err := c.stats.All(ctx)
	if err != nil {
		return c.failed(CheckUserStats, err)
	}

	stored := make(map[string]int64, len(rows))
	for _, u := range rows {
		stored[u.Address] = u.TotalTransactions
	}

	var issues []domain.IntegrityIssue
	var mismatches int64
	for sender, want := range counts {
		// Liquidity events also count toward total_transactions, so a
		// stored total below the raw swap count is the inconsistency.
		addr := common.HexToAddress(sender).Hex()
		if stored[addr] < want {
			mismatches++
			if int64(len(issues)) < ReconcileSampleLimit {
				issues = append(issues, domain.IntegrityIssue{
					Severity:      domain.SeverityWarning,
					Message:       fmt.Sprintf("address %s: stored %d transactions, raw swap count %d", addr, stored[addr], want),
					AffectedCount: 1,
				})
			}
		}
	}

	return c.result(CheckUserStats, issues,
		fmt.Sprintf("%d senders compared, %d mismatches", len(counts), mismatches))
}
