// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"rxledger/internal/domain/catalog"
	"rxledger/internal/domain/ledger"
	"rxledger/internal/domain/pricing"
	"rxledger/internal/domain/refreshqueue"
	"rxledger/internal/domain/search"
	"rxledger/internal/domain/snapshot"
	"rxledger/internal/infrastructure/http/v1/handlers"
	"rxledger/internal/infrastructure/http/v1/middleware"
	"rxledger/internal/infrastructure/storage/postgres"
	"rxledger/pkg/logger"
)

// RouterConfig holds the assembled services the API exposes.
type RouterConfig struct {
	Logger *logger.Logger
	Pool   *pgxpool.Pool

	SearchService  *search.Service
	LedgerService  *ledger.Service
	CatalogService *catalog.Service
	PricingService *pricing.Service
	SnapshotRouter *snapshot.Router
	Queue          refreshqueue.Repository
	Companies      catalog.CompanyRepository
	Audit          *postgres.AuditService
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters).
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints, no company scope required.
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("", healthHandler.Live)
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	searchHandler := handlers.NewSearchHandler(cfg.SearchService, cfg.Companies)
	ledgerHandler := handlers.NewLedgerHandler(cfg.LedgerService)
	snapshotHandler := handlers.NewSnapshotHandler(cfg.SnapshotRouter, cfg.Queue)
	catalogHandler := handlers.NewCatalogHandler(cfg.CatalogService, cfg.PricingService)
	auditHandler := handlers.NewAuditHandler(cfg.Audit)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Company())
	{
		v1.GET("/items/search", searchHandler.Search)
		v1.GET("/items/:id", catalogHandler.GetItem)
		v1.PUT("/items/:id", catalogHandler.UpdateItem)

		v1.POST("/ledger/post", ledgerHandler.Post)
		v1.GET("/ledger/history", ledgerHandler.History)

		v1.POST("/snapshot/refresh", snapshotHandler.Refresh)
		v1.GET("/snapshot/queue", snapshotHandler.Queue)

		v1.PUT("/pricing/margin", catalogHandler.SetCompanyMargin)
		v1.PUT("/pricing/tiers/:tier", catalogHandler.SetTierMargin)

		v1.GET("/audit/:entity/:id", auditHandler.History)
	}

	return router
}
