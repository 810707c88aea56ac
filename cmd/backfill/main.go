// Package main is the snapshot backfill tool. It rebuilds the search
// snapshot for one company, typically before enabling snapshot routing
// for that tenant.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"rxledger/internal/core/id"
	"rxledger/internal/domain/pricing"
	"rxledger/internal/domain/snapshot"
	"rxledger/internal/infrastructure/storage/postgres"
	"rxledger/internal/infrastructure/storage/postgres/catalog_repo"
	"rxledger/internal/infrastructure/storage/postgres/ledger_repo"
	"rxledger/internal/infrastructure/storage/postgres/snapshot_repo"
	"rxledger/pkg/config"
	"rxledger/pkg/logger"
)

func main() {
	companyFlag := flag.String("company", "", "company id to backfill (required)")
	flag.Parse()

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

	companyID, err := id.Parse(*companyFlag)
	if err != nil {
		log.Fatalw("invalid -company flag", "value", *companyFlag)
	}

	ctx := context.Background()

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

	marginResolver, err := pricing.NewResolver()
	if err != nil {
		log.Fatalw("failed to initialize margin resolver", "error", err)
	}
	refresher := snapshot.NewRefresher(itemRepo, branchRepo, companyRepo, ledgerRepo, marginResolver, snapshotRepo)
	backfiller := snapshot.NewBackfiller(itemRepo, branchRepo, refresher, txm, cfg.Refresh.ChunkSize)

	log.Infow("starting snapshot backfill", "company_id", companyID)
	start := time.Now()

	rows, err := backfiller.Run(ctx, companyID)
	if err != nil {
		log.Fatalw("backfill failed", "company_id", companyID, "rows_done", rows, "error", err)
	}

	log.Infow("backfill complete",
		"company_id", companyID,
		"rows", rows,
		"took", time.Since(start).String(),
	)
}
