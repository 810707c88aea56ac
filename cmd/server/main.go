// Package main is the entry point for the rxledger API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rxledger/internal/domain/catalog"
	"rxledger/internal/domain/ledger"
	"rxledger/internal/domain/pricing"
	"rxledger/internal/domain/search"
	"rxledger/internal/domain/snapshot"
	v1 "rxledger/internal/infrastructure/http/v1"
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

	ctx := context.Background()
	log.Info("starting rxledger server")

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.DSN)
	poolCfg.MaxConns = cfg.DB.MaxConns
	poolCfg.MinConns = cfg.DB.MinConns
	poolCfg.MaxConnLifetime = cfg.DB.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.DB.MaxConnIdleTime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txm := postgres.NewTxManager(pool)

	// Repositories.
	itemRepo := catalog_repo.NewItemRepo(txm)
	branchRepo := catalog_repo.NewBranchRepo(txm)
	companyRepo := catalog_repo.NewCompanyRepo(txm)
	ledgerRepo := ledger_repo.NewLedgerRepo(txm)
	snapshotRepo := snapshot_repo.NewSnapshotRepo(txm)
	queueRepo := queue_repo.NewQueueRepo(txm)

	auditService, err := postgres.NewAuditService(txm)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	// Snapshot refresh pipeline.
	marginResolver, err := pricing.NewResolver()
	if err != nil {
		log.Fatalw("failed to initialize margin resolver", "error", err)
	}
	refresher := snapshot.NewRefresher(itemRepo, branchRepo, companyRepo, ledgerRepo, marginResolver, snapshotRepo)
	snapshotRouter := snapshot.NewRouter(refresher, queueRepo)

	// Domain services.
	ledgerService := ledger.NewService(ledgerRepo, snapshotRouter, txm, auditService)
	catalogService := catalog.NewService(itemRepo, branchRepo, snapshotRouter, txm)
	pricingService := pricing.NewService(companyRepo, branchRepo, snapshotRouter, txm)
	searchService := search.NewService(snapshotRepo, itemRepo, search.Config{
		PrimaryTimeout: cfg.Search.PrimaryTimeout,
		DefaultLimit:   cfg.Search.DefaultLimit,
	})

	router := v1.NewRouter(v1.RouterConfig{
		Logger:         log,
		Pool:           pool.Pool,
		SearchService:  searchService,
		LedgerService:  ledgerService,
		CatalogService: catalogService,
		PricingService: pricingService,
		SnapshotRouter: snapshotRouter,
		Queue:          queueRepo,
		Companies:      companyRepo,
		Audit:          auditService,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("http server listening", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("http server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("forced shutdown", "error", err)
	}

	log.Info("server stopped")
}
