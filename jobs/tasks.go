// Package jobs wires background processing: variant generation runs, the
// low stock scan and housekeeping.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridianpos/meridian/internal/inventory"
	"github.com/meridianpos/meridian/internal/variants"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskVariantGenerate runs variant generation for one product.
	TaskVariantGenerate = "variants:generate"
	// TaskLowStockScan checks stock levels against reorder thresholds.
	TaskLowStockScan = "inventory:lowstock_scan"
	// TaskIdempotencyGC prunes expired idempotency keys.
	TaskIdempotencyGC = "maintenance:idempotency_gc"
)

// VariantGeneratePayload parameterises a generation run.
type VariantGeneratePayload struct {
	ProductID       int64  `json:"product_id"`
	Mode            string `json:"mode"`
	InitialQuantity int64  `json:"initial_quantity"`
}

// NewVariantGenerateTask constructs an Asynq task.
func NewVariantGenerateTask(payload VariantGeneratePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVariantGenerate, data, asynq.Queue(QueueDefault)), nil
}

// NewVariantGenerateHandler builds the handler processing generation runs.
func NewVariantGenerateHandler(svc *variants.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload VariantGeneratePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		tracker := NewJobMetrics(nil).Track(TaskVariantGenerate)
		result, err := svc.Generate(ctx, variants.GenerateInput{
			ProductID:       payload.ProductID,
			Mode:            variants.GenerationMode(payload.Mode),
			InitialQuantity: payload.InitialQuantity,
		})
		if err != nil {
			logger.Error("variant generation job failed",
				slog.Int64("product_id", payload.ProductID), slog.Any("error", err))
			return tracker.End(err)
		}
		logger.Info("variant generation job done",
			slog.Int64("product_id", payload.ProductID),
			slog.Int("created", len(result.Created)),
			slog.Int("skipped", result.Skipped),
			slog.Int("retired", result.Retired))
		return tracker.End(nil)
	}
}

// LowStockScanPayload carries scheduling metadata.
type LowStockScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the nightly scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	data, err := json.Marshal(LowStockScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data, asynq.Queue(QueueDefault)), nil
}

// NewLowStockScanHandler builds the handler reporting low stock variants.
func NewLowStockScanHandler(svc *inventory.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LowStockScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		metrics := NewJobMetrics(nil)
		tracker := metrics.Track(TaskLowStockScan)
		records, err := svc.LowStock(ctx)
		if err != nil {
			return tracker.End(err)
		}
		for _, rec := range records {
			logger.Warn("variant below reorder level",
				slog.Int64("variant_id", rec.VariantID),
				slog.Int64("available", rec.Available()),
				slog.Int64("reorder_level", rec.ReorderLevel))
		}
		metrics.AddLowStockFlags(len(records))
		logger.Info("low stock scan done", slog.Int("flagged", len(records)))
		return tracker.End(nil)
	}
}

// IdempotencyGC abstracts the key store cleanup.
type IdempotencyGC interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// NewIdempotencyGCTask constructs the housekeeping task.
func NewIdempotencyGCTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyGC, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyGCHandler builds the handler pruning expired keys.
func NewIdempotencyGCHandler(store IdempotencyGC, retention time.Duration, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := NewJobMetrics(nil).Track(TaskIdempotencyGC)
		if err := store.Cleanup(ctx, retention); err != nil {
			logger.Error("idempotency cleanup failed", slog.Any("error", err))
			return tracker.End(err)
		}
		return tracker.End(nil)
	}
}
