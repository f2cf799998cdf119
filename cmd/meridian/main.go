package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridianpos/meridian/internal/app"
	"github.com/meridianpos/meridian/internal/attributes"
	"github.com/meridianpos/meridian/internal/inventory"
	"github.com/meridianpos/meridian/internal/masterdata/categories"
	"github.com/meridianpos/meridian/internal/masterdata/products"
	"github.com/meridianpos/meridian/internal/observability"
	"github.com/meridianpos/meridian/internal/platform/cache"
	"github.com/meridianpos/meridian/internal/platform/db"
	"github.com/meridianpos/meridian/internal/rules"
	"github.com/meridianpos/meridian/internal/sales"
	"github.com/meridianpos/meridian/internal/shared"
	"github.com/meridianpos/meridian/internal/variants"
	"github.com/meridianpos/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalogCache := cache.New(redisClient, cfg.CacheTTL)
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	productsRepo := products.NewRepository(dbpool)
	productsService := products.NewService(productsRepo)
	productsHandler := products.NewHandler(logger, productsService)

	categoriesRepo := categories.NewRepository(dbpool)
	categoriesService := categories.NewService(categoriesRepo)
	categoriesHandler := categories.NewHandler(logger, categoriesService)

	attributesRepo := attributes.NewRepository(dbpool)
	attributesService := attributes.NewService(attributesRepo, auditLogger, catalogCache)
	attributesHandler := attributes.NewHandler(logger, attributesService)

	rulesRepo := rules.NewRepository(dbpool)
	rulesService := rules.NewService(rulesRepo)
	rulesHandler := rules.NewHandler(logger, rulesService)

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, idempotencyStore, cfg.StockAllowNegative)
	inventoryHandler := inventory.NewHandler(logger, inventoryService)

	variantsRepo := variants.NewRepository(dbpool)
	variantsService := variants.NewService(variantsRepo, attributesService, rulesService, productsService, auditLogger, cfg.VariantMaxCombinations)
	variantsHandler := variants.NewHandler(logger, variantsService)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, variantsService, productsService, auditLogger, idempotencyStore, cfg.StockAllowNegative)
	salesHandler := sales.NewHandler(logger, salesService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		ProductsHandler:   productsHandler,
		CategoriesHandler: categoriesHandler,
		AttributesHandler: attributesHandler,
		RulesHandler:      rulesHandler,
		VariantsHandler:   variantsHandler,
		InventoryHandler:  inventoryHandler,
		SalesHandler:      salesHandler,
		JobsHandler:       jobsHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
