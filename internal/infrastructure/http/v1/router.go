// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"lotledger/internal/app"
	"lotledger/internal/infrastructure/http/v1/handlers"
	"lotledger/internal/infrastructure/http/v1/middleware"
	"lotledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Services *app.Services

	// Database backs the readiness probe; nil reports ready.
	Database handlers.Pinger

	// Logger for request logging
	Logger *logger.Logger

	Version string

	// Development enables gin debug mode.
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Actor())

	base := handlers.NewBaseHandler()
	registerInventoryRoutes(v1.Group("/inventory"), handlers.NewInventoryHandler(base, cfg.Services.Inventory))
	registerLotRoutes(v1.Group("/lots"), handlers.NewLotHandler(base, cfg.Services.Lots))
	registerLedgerRoutes(v1.Group("/movements"), handlers.NewLedgerHandler(base, cfg.Services.Ledger))
	RegisterPlannedRoutes(v1.Group("/planned"), handlers.NewPlannedHandler(base, cfg.Services.Planned))

	return router
}

func registerInventoryRoutes(rg *gin.RouterGroup, h *handlers.InventoryHandler) {
	rg.POST("/receive", h.Receive)
	rg.POST("/issue", h.Issue)
	rg.POST("/transfer", h.Transfer)
	rg.GET("/available", h.Available)
}

func registerLotRoutes(rg *gin.RouterGroup, h *handlers.LotHandler) {
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/identity/:identity", h.GetByIdentity)
}

func registerLedgerRoutes(rg *gin.RouterGroup, h *handlers.LedgerHandler) {
	rg.GET("", h.Movements)
	rg.GET("/totals", h.Totals)
}
