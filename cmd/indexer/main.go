package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"uniswap-pool-indexer/internal/aggregation"
	"uniswap-pool-indexer/internal/domain"
	"uniswap-pool-indexer/internal/ethereum"
	"uniswap-pool-indexer/internal/ingestion"
	"uniswap-pool-indexer/internal/integrity"
	"uniswap-pool-indexer/internal/monitoring"
	"uniswap-pool-indexer/internal/observability"
	"uniswap-pool-indexer/internal/pipeline"
	"uniswap-pool-indexer/internal/processing"
	"uniswap-pool-indexer/internal/scheduler"
	"uniswap-pool-indexer/internal/snapshot"
	"uniswap-pool-indexer/internal/storage"
	chstore "uniswap-pool-indexer/internal/storage/clickhouse"
	"uniswap-pool-indexer/internal/storage/memory"
	"uniswap-pool-indexer/internal/storage/migrations"
	pgstore "uniswap-pool-indexer/internal/storage/postgres"
	"uniswap-pool-indexer/internal/valuation"
)

// DefaultQuoterAddress is the canonical Uniswap V3 Quoter on mainnet.
const DefaultQuoterAddress = "0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6"

// config carries the parsed flag set into run.
type config struct {
	rpcEndpoint   string
	wsEndpoint    string
	pool          string
	postgresDSN   string
	clickhouseDSN string
	redisAddr     string
	quoter        string
	priceIndexURL string
	chain         string
	useMemory     bool
	workers       int
	eventBuffer   int
	cacheTTL      time.Duration
}

func main() {
	// Parse flags
	var cfg config
	flag.StringVar(&cfg.rpcEndpoint, "rpc-endpoint", "", "Ethereum JSON-RPC HTTP endpoint")
	flag.StringVar(&cfg.wsEndpoint, "ws-endpoint", "", "Ethereum WebSocket endpoint")
	flag.StringVar(&cfg.pool, "pool", "", "Uniswap V3 pool contract address")
	flag.StringVar(&cfg.postgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	flag.StringVar(&cfg.clickhouseDSN, "clickhouse-dsn", "", "ClickHouse DSN for event metrics (empty to keep metrics in memory)")
	flag.StringVar(&cfg.redisAddr, "redis-addr", "", "Redis address for the price cache (empty for in-process cache)")
	flag.StringVar(&cfg.quoter, "quoter", DefaultQuoterAddress, "Uniswap V3 Quoter contract address")
	flag.StringVar(&cfg.priceIndexURL, "price-index-url", "", "Price index API base URL (empty to disable)")
	flag.StringVar(&cfg.chain, "chain", "ethereum", "Chain slug for price index lookups")
	flag.BoolVar(&cfg.useMemory, "use-memory", false, "Use in-memory storage instead of PostgreSQL")
	flag.IntVar(&cfg.workers, "workers", pipeline.DefaultWorkers, "Pipeline worker count")
	flag.IntVar(&cfg.eventBuffer, "event-buffer", ingestion.DefaultEventBuffer, "Decoded event channel capacity")
	flag.DurationVar(&cfg.cacheTTL, "cache-ttl", valuation.DefaultCacheTTL, "Unit price cache TTL")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[indexer] ", log.LstdFlags|log.Lshortfile)

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal main goroutine completion
	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err := run(ctx, logger, cfg)

	// Signal completion to shutdown handler
	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// run wires the full pipeline and blocks until the context is cancelled.
func run(ctx context.Context, logger *log.Logger, cfg config) error {
	if cfg.rpcEndpoint == "" {
		return fmt.Errorf("--rpc-endpoint is required")
	}
	if cfg.wsEndpoint == "" {
		return fmt.Errorf("--ws-endpoint is required")
	}
	if !common.IsHexAddress(cfg.pool) {
		return fmt.Errorf("--pool must be a valid contract address, got %q", cfg.pool)
	}
	if !cfg.useMemory && cfg.postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	metrics := observability.NewMetrics("")

	// Create clients
	rpc := ethereum.NewHTTPClient(cfg.rpcEndpoint, ethereum.WithCallObserver(func(method string, elapsed time.Duration) {
		metrics.RPCCallLatency.WithLabelValues(method).Observe(elapsed.Seconds())
	}))

	ws, err := ethereum.NewWSClient(ctx, cfg.wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	// Create stores (use interfaces)
	var rawStore storage.RawEventStore = memory.NewRawEventStore()
	var priceStore storage.PriceHistoryStore = memory.NewPriceHistoryStore()
	var hourlyStore storage.HourlyStatsStore = memory.NewHourlyStatsStore()
	var dailyStore storage.DailyStatsStore = memory.NewDailyStatsStore()
	var userStore storage.UserStatsStore = memory.NewUserStatsStore()
	var snapshotStore storage.SnapshotStore = memory.NewSnapshotStore()
	var integrityStore storage.IntegrityStore = memory.NewIntegrityStore()
	var metricStore storage.EventMetricStore = memory.NewEventMetricStore()

	if !cfg.useMemory {
		pool, err := pgstore.NewPool(ctx, cfg.postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return fmt.Errorf("run postgres migrations: %w", err)
		}

		rawStore = pgstore.NewRawEventStore(pool)
		priceStore = pgstore.NewPriceHistoryStore(pool)
		hourlyStore = pgstore.NewHourlyStatsStore(pool)
		dailyStore = pgstore.NewDailyStatsStore(pool)
		userStore = pgstore.NewUserStatsStore(pool)
		snapshotStore = pgstore.NewSnapshotStore(pool)
		integrityStore = pgstore.NewIntegrityStore(pool)
	}

	if cfg.clickhouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.clickhouseDSN)
		if err != nil {
			return fmt.Errorf("connect to clickhouse: %w", err)
		}
		defer conn.Close()

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			return fmt.Errorf("run clickhouse migrations: %w", err)
		}
		metricStore = chstore.NewEventMetricStore(conn)
	}

	// Resolve the pool's token pair from the chain
	poolAddr := common.HexToAddress(cfg.pool)
	token0, token1, err := resolveTokenPair(ctx, rpc, poolAddr)
	if err != nil {
		return err
	}
	logger.Printf("Indexing pool %s: %s/%s", poolAddr.Hex(), token0.Symbol, token1.Symbol)

	// Price cache: Redis when configured, in-process otherwise
	var cache valuation.PriceCache = valuation.NewMemoryCache(cfg.cacheTTL)
	if cfg.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.redisAddr, err)
		}
		defer client.Close()
		cache = valuation.NewRedisCache(client, cfg.cacheTTL)
	}

	var index *valuation.IndexClient
	if cfg.priceIndexURL != "" {
		index = valuation.NewIndexClient(cfg.priceIndexURL)
	}
	if !common.IsHexAddress(cfg.quoter) {
		return fmt.Errorf("--quoter must be a valid contract address, got %q", cfg.quoter)
	}

	valuer := valuation.NewValuer(valuation.ValuerOptions{
		Quoter: valuation.NewQuoterClient(rpc, common.HexToAddress(cfg.quoter), nil),
		Index:  index,
		Cache:  cache,
		Chain:  cfg.chain,
		Logger: logger,
	})

	// Processors
	trades := processing.NewTradeProcessor(processing.ProcessorOptions{RPC: rpc, Valuer: valuer, Logger: logger})
	trades.SetTokenInfo(token0, token1)
	liquidity := processing.NewLiquidityProcessor(processing.ProcessorOptions{RPC: rpc, Valuer: valuer, Logger: logger})
	liquidity.SetTokenInfo(token0, token1)

	// Metric collector
	collector := monitoring.NewCollector(monitoring.CollectorOptions{
		Store:   metricStore,
		Metrics: metrics,
		Logger:  logger,
	})
	collector.Start(ctx)
	defer collector.Stop()

	// Listener and worker pool
	listener := ingestion.NewPoolListener(ingestion.ListenerOptions{
		WS:          ws,
		RPC:         rpc,
		EventBuffer: cfg.eventBuffer,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err := listener.Attach(ctx, cfg.pool); err != nil {
		return fmt.Errorf("attach pool: %w", err)
	}

	runner := pipeline.NewRunner(pipeline.RunnerOptions{
		Events:    listener.Events(),
		Trades:    trades,
		Liquidity: liquidity,
		Raw:       rawStore,
		Prices:    priceStore,
		Accounts:  aggregation.NewAccountAggregator(userStore),
		Collector: collector,
		Metrics:   metrics,
		Workers:   cfg.workers,
		Logger:    logger,
	})
	runner.Start(ctx)

	// Scheduled rollups, snapshots, and the integrity battery
	snapshotter := snapshot.NewSnapshotter(snapshot.SnapshotterOptions{
		RPC:    rpc,
		Valuer: valuer,
		Store:  snapshotStore,
		Hourly: hourlyStore,
		Pool:   poolAddr,
		Token0: token0,
		Token1: token1,
		Logger: logger,
	})
	checker := integrity.NewChecker(integrity.CheckerOptions{
		Events:  rawStore,
		Prices:  priceStore,
		Stats:   userStore,
		Results: integrityStore,
		Metrics: metrics,
		Logger:  logger,
	})
	sched := scheduler.New(scheduler.Options{
		Aggregator: aggregation.NewBucketAggregator(rawStore),
		Hourly:     hourlyStore,
		Daily:      dailyStore,
		Snapshots:  snapshotter,
		Integrity:  checker,
		Metrics:    metrics,
		Logger:     logger,
	})
	sched.Start(ctx)

	logger.Println("Live indexing started")
	<-ctx.Done()

	// Shutdown: stop producers first, then drain workers and flush metrics.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	listener.DetachAll(shutdownCtx)
	runner.Wait()
	sched.Stop()

	return ctx.Err()
}

// resolveTokenPair reads the pool's token addresses and their ERC-20
// metadata from the chain.
func resolveTokenPair(ctx context.Context, rpc ethereum.RPCClient, pool common.Address) (domain.TokenInfo, domain.TokenInfo, error) {
	addr0, addr1, err := ethereum.PoolTokens(ctx, rpc, pool)
	if err != nil {
		return domain.TokenInfo{}, domain.TokenInfo{}, fmt.Errorf("resolve pool tokens: %w", err)
	}

	token0, err := resolveToken(ctx, rpc, addr0)
	if err != nil {
		return domain.TokenInfo{}, domain.TokenInfo{}, err
	}
	token1, err := resolveToken(ctx, rpc, addr1)
	if err != nil {
		return domain.TokenInfo{}, domain.TokenInfo{}, err
	}
	return token0, token1, nil
}

func resolveToken(ctx context.Context, rpc ethereum.RPCClient, addr common.Address) (domain.TokenInfo, error) {
	symbol, err := ethereum.TokenSymbol(ctx, rpc, addr)
	if err != nil {
		return domain.TokenInfo{}, fmt.Errorf("token %s: %w", addr.Hex(), err)
	}
	decimals, err := ethereum.TokenDecimals(ctx, rpc, addr)
	if err != nil {
		return domain.TokenInfo{}, fmt.Errorf("token %s: %w", addr.Hex(), err)
	}
	return domain.TokenInfo{Address: addr, Symbol: symbol, Decimals: decimals}, nil
}
