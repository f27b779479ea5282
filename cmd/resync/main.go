package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"uniswap-pool-indexer/internal/aggregation"
	"uniswap-pool-indexer/internal/storage"
	"uniswap-pool-indexer/internal/storage/memory"
	pgstore "uniswap-pool-indexer/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")

	flag.Parse()

	logger := log.New(os.Stdout, "[resync] ", log.LstdFlags|log.Lshortfile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, aborting resync...", sig)
		cancel()
	}()

	if err := run(ctx, logger, *postgresDSN, *useMemory); err != nil {
		logger.Fatalf("Error: %v", err)
	}
}

// run replays the full raw event history into fresh per-account stats rows.
func run(ctx context.Context, logger *log.Logger, postgresDSN string, useMemory bool) error {
	if !useMemory && postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	var eventStore storage.RawEventStore = memory.NewRawEventStore()
	var userStore storage.UserStatsStore = memory.NewUserStatsStore()

	if !useMemory {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()

		eventStore = pgstore.NewRawEventStore(pool)
		userStore = pgstore.NewUserStatsStore(pool)
	}

	resyncer := aggregation.NewResyncer(aggregation.ResyncOptions{
		Events: eventStore,
		Stats:  userStore,
		Logger: logger,
	})

	logger.Println("Rebuilding account stats from raw event history...")
	result, err := resyncer.SyncAllUserStats(ctx)
	if err != nil {
		return err
	}

	logger.Printf("Resync complete: %d events replayed, %d accounts written in %v",
		result.EventsReplayed, result.AccountsWritten, result.Duration)
	return nil
}
