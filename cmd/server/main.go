// Package main is the entry point for the pharmastock API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmastock/internal/domain/auth"
	"pharmastock/internal/domain/catalogs"
	"pharmastock/internal/domain/documents/inventory"
	"pharmastock/internal/domain/registers/stock"
	"pharmastock/internal/infrastructure/cache"
	"pharmastock/internal/infrastructure/config"
	v1 "pharmastock/internal/infrastructure/http/v1"
	"pharmastock/internal/infrastructure/http/v1/middleware"
	"pharmastock/internal/infrastructure/migration"
	"pharmastock/internal/infrastructure/numerator"
	"pharmastock/internal/infrastructure/storage/postgres"
	"pharmastock/internal/infrastructure/storage/postgres/catalog_repo"
	"pharmastock/internal/infrastructure/storage/postgres/document_repo"
	"pharmastock/internal/infrastructure/storage/postgres/register_repo"
	"pharmastock/pkg/logger"
)

var version = "dev"

func main() {
	configFile := flag.String("config", "", "path to config.toml")
	envFile := flag.String("env", ".env", "path to a .env file")
	migrateUp := flag.Bool("migrate", false, "apply pending migrations before serving")
	flag.Parse()

	cfg, err := config.Load(config.Options{ConfigFile: *configFile, EnvFile: *envFile})
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting pharmastock server", "version", version)

	if *migrateUp {
		if err := runMigrations(cfg.Database.URL, log); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
	}

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	txm := postgres.NewTxManager(pool).WithStatementTimeout(cfg.Database.StatementTimeout)

	// --- Repositories ---
	sessionRepo := document_repo.NewSessionRepo(txm)
	rowRepo := document_repo.NewRowRepo(txm)
	lotRepo := register_repo.NewLotRepo(txm)
	movementRepo := register_repo.NewMovementRepo(txm)
	productRepo := catalog_repo.NewProductRepo(txm)
	movementTypeRepo := catalog_repo.NewMovementTypeRepo(txm)
	supplierRepo := catalog_repo.NewSupplierRepo(txm)
	wardRepo := catalog_repo.NewWardRepo(txm)

	num := numerator.New(pool)
	stockService := stock.NewService(lotRepo, movementRepo, num)

	// --- Product cache ---
	var (
		products    catalogs.ProductCatalog = productRepo
		redisClient redis.UniversalClient
	)
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = redisClient.Close() }()

		cached := cache.NewProductCatalog(productRepo, redisClient, cfg.Redis.CatalogTTL)
		listener := cache.NewListener(pool.Pool)
		listener.OnNotify(cached.Listen())
		listener.Start(ctx)
		defer listener.Stop()

		products = cached
		log.Infow("product cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CatalogTTL)
	}

	// --- Outbox ---
	codec, err := postgres.NewOutboxCodec(cfg.Outbox.CompressThreshold)
	if err != nil {
		log.Fatalw("failed to create outbox codec", "error", err)
	}

	// --- Inventory workflow ---
	bus := inventory.NewEventBus()
	defer bus.Close()

	inventoryService, err := inventory.NewService(inventory.ServiceConfig{
		TxManager:     txm,
		Sessions:      sessionRepo,
		Rows:          rowRepo,
		Stock:         stockService,
		Products:      products,
		MovementTypes: movementTypeRepo,
		Suppliers:     supplierRepo,
		Wards:         wardRepo,
		Numerator:     num,
		Bus:           bus,
		Recorder:      postgres.NewOutboxRecorder(txm, codec),
		Settings:      cfg.Inventory.Settings(),
	})
	if err != nil {
		log.Fatalw("failed to create inventory service", "error", err)
	}

	edits := inventory.NewEditorRegistry(cfg.Inventory.EditTTL)
	go edits.Run(ctx, time.Minute)

	// --- Auth ---
	jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
	jwtCfg.Issuer = cfg.JWT.Issuer
	jwtCfg.AccessTokenTTL = cfg.JWT.TTL
	jwtService, err := auth.NewJWTService(jwtCfg)
	if err != nil {
		log.Fatalw("invalid jwt configuration", "error", err)
	}

	// --- Router ---
	var idempotency middleware.IdempotencyStore
	if cfg.Idempotency.TTL > 0 {
		idempotency = postgres.NewIdempotencyStore(txm, cfg.Idempotency.TTL)
	}

	router := v1.NewRouter(v1.RouterConfig{
		Pool:          pool,
		Redis:         redisClient,
		Logger:        log,
		JWTValidator:  jwtService,
		Inventory:     inventoryService,
		Edits:         edits,
		Products:      products,
		MovementTypes: movementTypeRepo,
		Suppliers:     supplierRepo,
		Wards:         wardRepo,
		Idempotency:   idempotency,
		Version:       version,
		Debug:         cfg.Log.Development,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	<-ctx.Done()
	log.Info("shutting down server...")

	// Closing the bus first ends open event streams so Shutdown does not wait on them.
	bus.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func runMigrations(databaseURL string, log *logger.Logger) error {
	m, err := migration.New(databaseURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}
