package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridianpos/meridian/internal/app"
	"github.com/meridianpos/meridian/internal/attributes"
	"github.com/meridianpos/meridian/internal/inventory"
	"github.com/meridianpos/meridian/internal/masterdata/products"
	"github.com/meridianpos/meridian/internal/platform/cache"
	"github.com/meridianpos/meridian/internal/platform/db"
	"github.com/meridianpos/meridian/internal/rules"
	"github.com/meridianpos/meridian/internal/shared"
	"github.com/meridianpos/meridian/internal/variants"
	"github.com/meridianpos/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	productsService := products.NewService(products.NewRepository(dbpool))
	attributesService := attributes.NewService(attributes.NewRepository(dbpool), auditLogger, catalogCache)
	rulesService := rules.NewService(rules.NewRepository(dbpool))
	inventoryService := inventory.NewService(inventory.NewRepository(dbpool), auditLogger, idempotencyStore, cfg.StockAllowNegative)
	variantsService := variants.NewService(variants.NewRepository(dbpool), attributesService, rulesService, productsService, auditLogger, cfg.VariantMaxCombinations)

	lowStockTask, err := jobs.NewLowStockScanTask(time.Now().UTC())
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskVariantGenerate, Handler: jobs.NewVariantGenerateHandler(variantsService, logger)},
			{Type: jobs.TaskLowStockScan, Handler: jobs.NewLowStockScanHandler(inventoryService, logger)},
			{Type: jobs.TaskIdempotencyGC, Handler: jobs.NewIdempotencyGCHandler(idempotencyStore, cfg.IdempotencyRetention, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 1 * * *", Task: lowStockTask},
			{Spec: "0 3 * * *", Task: jobs.NewIdempotencyGCTask()},
		},
	})
	if err != nil {
		logger.Error("build worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}
