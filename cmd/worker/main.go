// Package main is the entry point for the rxledger background worker.
// It drains the snapshot refresh queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"rxledger/internal/domain/pricing"
	"rxledger/internal/domain/refreshqueue"
	"rxledger/internal/domain/snapshot"
	"rxledger/internal/infrastructure/storage/postgres"
	"rxledger/internal/infrastructure/storage/postgres/catalog_repo"
	"rxledger/internal/infrastructure/storage/postgres/ledger_repo"
	"rxledger/internal/infrastructure/storage/postgres/queue_repo"
	"rxledger/internal/infrastructure/storage/postgres/snapshot_repo"
	"rxledger/pkg/config"
	"rxledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Env == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting rxledger refresh worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DB.DSN))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)

	itemRepo := catalog_repo.NewItemRepo(txm)
	branchRepo := catalog_repo.NewBranchRepo(txm)
	companyRepo := catalog_repo.NewCompanyRepo(txm)
	ledgerRepo := ledger_repo.NewLedgerRepo(txm)
	snapshotRepo := snapshot_repo.NewSnapshotRepo(txm)
	queueRepo := queue_repo.NewQueueRepo(txm)

	marginResolver, err := pricing.NewResolver()
	if err != nil {
		log.Fatalw("failed to initialize margin resolver", "error", err)
	}
	refresher := snapshot.NewRefresher(itemRepo, branchRepo, companyRepo, ledgerRepo, marginResolver, snapshotRepo)

	processor := refreshqueue.NewProcessor(queueRepo, itemRepo, refresher, txm, refreshqueue.Config{
		ChunkSize:  cfg.Refresh.ChunkSize,
		ClaimLease: cfg.Refresh.ClaimLease,
	})

	concurrency := cfg.Worker.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		worker := refreshqueue.NewWorker(processor, cfg.Worker.PollInterval, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Run(ctx)
		}()
	}
	log.Infow("refresh workers started", "concurrency", concurrency)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}
