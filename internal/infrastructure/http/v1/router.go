// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"pharmastock/internal/domain/catalogs"
	"pharmastock/internal/domain/documents/inventory"
	"pharmastock/internal/infrastructure/http/v1/handlers"
	"pharmastock/internal/infrastructure/http/v1/middleware"
	"pharmastock/internal/infrastructure/storage/postgres"
	"pharmastock/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Pool *postgres.Pool

	// Redis is reported by the readiness probe; nil when the cache is off.
	Redis redis.UniversalClient

	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator

	Inventory *inventory.Service
	Edits     *inventory.EditorRegistry

	Products      catalogs.ProductCatalog
	MovementTypes catalogs.MovementTypeCatalog
	Suppliers     catalogs.SupplierCatalog
	Wards         catalogs.WardCatalog

	// Idempotency guards workflow POSTs when set.
	Idempotency middleware.IdempotencyStore

	Version string
	Debug   bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.Redis, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.JWTValidator))
	{
		var idempotent []gin.HandlerFunc
		if cfg.Idempotency != nil {
			idempotent = append(idempotent, middleware.Idempotency(cfg.Idempotency))
		}

		base := handlers.NewBaseHandler()
		registerInventoryRoutes(v1, base, cfg, idempotent)
		registerCatalogRoutes(v1, base, cfg)

		events := handlers.NewEventsHandler(base, cfg.Inventory.Bus())
		v1.GET("/events", events.Stream)
	}

	return router
}

func registerInventoryRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig, idempotent []gin.HandlerFunc) {
	handler := handlers.NewInventoryHandler(base, cfg.Inventory, cfg.Edits)
	RegisterEditRoutes(rg.Group("/inventory-edits"), handler, idempotent...)
	RegisterSessionRoutes(rg.Group("/inventories"), handler, idempotent...)
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	handler := handlers.NewCatalogHandler(base, handlers.CatalogHandlerConfig{
		Products:      cfg.Products,
		MovementTypes: cfg.MovementTypes,
		Suppliers:     cfg.Suppliers,
		Wards:         cfg.Wards,
	})

	catalog := rg.Group("/catalog")
	{
		catalog.GET("/products", handler.Products)
		catalog.GET("/products/count", handler.ProductCount)
		catalog.GET("/movement-types", handler.MovementTypes)
		catalog.GET("/suppliers", handler.Suppliers)
		catalog.GET("/wards", handler.Wards)
	}
}
