package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/meridianpos/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	Get(ctx context.Context, variantID int64) (Record, error)
	SetReorderPolicy(ctx context.Context, variantID, level, qty int64, location string) error
	ListMovements(ctx context.Context, variantID int64, limit, offset int) ([]Movement, error)
	ListLowStock(ctx context.Context) ([]Record, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against replayed mutations.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service coordinates stock operations.
type Service struct {
	repo          RepositoryPort
	audit         AuditPort
	idempotency   IdempotencyPort
	allowNegative bool
}

// NewService builds Service. allowNegative lifts the zero floor on stock
// quantities.
func NewService(repo RepositoryPort, audit AuditPort, idempotency IdempotencyPort, allowNegative bool) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idempotency, allowNegative: allowNegative}
}

// Adjust applies one stock movement. A non-empty idempotency key makes the
// call replay-safe.
func (s *Service) Adjust(ctx context.Context, in AdjustInput, idempotencyKey string) (Movement, error) {
	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "inventory"); err != nil {
			return Movement{}, err
		}
	}
	if in.ActorID == 0 {
		in.ActorID = shared.ActorFromContext(ctx)
	}

	var mv Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var applyErr error
		mv, applyErr = Apply(ctx, tx, in, s.allowNegative)
		return applyErr
	})
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, idempotencyKey)
		}
		return Movement{}, err
	}

	s.recordAudit(ctx, "inventory:adjust", in.VariantID, map[string]any{
		"type":      string(in.Type),
		"requested": in.Delta,
		"applied":   mv.Quantity,
	})
	return mv, nil
}

// Reserve holds quantity against future sale without writing a movement.
func (s *Service) Reserve(ctx context.Context, variantID, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: reservation quantity must be positive", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.RecordForUpdate(ctx, variantID)
		if err != nil {
			return err
		}
		if quantity > rec.Available() {
			return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientStock, quantity, rec.Available())
		}
		return tx.SetReserved(ctx, variantID, rec.Reserved+quantity)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "inventory:reserve", variantID, map[string]any{"quantity": quantity})
	return nil
}

// Release frees a previous reservation. Releasing more than is held clamps
// the reservation to zero.
func (s *Service) Release(ctx context.Context, variantID, quantity int64) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: release quantity must be positive", shared.ErrValidation)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.RecordForUpdate(ctx, variantID)
		if err != nil {
			return err
		}
		remaining := rec.Reserved - quantity
		if remaining < 0 {
			remaining = 0
		}
		return tx.SetReserved(ctx, variantID, remaining)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "inventory:release", variantID, map[string]any{"quantity": quantity})
	return nil
}

// Get returns the current stock record for one variant.
func (s *Service) Get(ctx context.Context, variantID int64) (Record, error) {
	if variantID <= 0 {
		return Record{}, fmt.Errorf("%w: invalid variant id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, variantID)
}

// SetReorderPolicy updates the low stock threshold, the refill quantity and
// the storage location for a variant.
func (s *Service) SetReorderPolicy(ctx context.Context, variantID, level, qty int64, location string) error {
	if level < 0 || qty < 0 {
		return fmt.Errorf("%w: reorder level and quantity cannot be negative", shared.ErrValidation)
	}
	return s.repo.SetReorderPolicy(ctx, variantID, level, qty, location)
}

// Count records a physical stock count. The counted quantity becomes the
// stored quantity via one adjustment movement, and the count timestamp is
// stamped on the record.
func (s *Service) Count(ctx context.Context, variantID, counted int64, note string) (Movement, error) {
	if variantID <= 0 {
		return Movement{}, fmt.Errorf("%w: invalid variant id", shared.ErrValidation)
	}
	if counted < 0 {
		return Movement{}, fmt.Errorf("%w: counted quantity cannot be negative", shared.ErrValidation)
	}
	if note == "" {
		note = "physical count"
	}

	var mv Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		rec, err := tx.RecordForUpdate(ctx, variantID)
		if err != nil {
			return err
		}
		now := time.Now()
		if delta := counted - rec.Quantity; delta != 0 {
			mv, err = Apply(ctx, tx, AdjustInput{
				VariantID: variantID,
				Type:      MovementAdjustment,
				Delta:     delta,
				Note:      note,
				ActorID:   shared.ActorFromContext(ctx),
			}, true)
			if err != nil {
				return err
			}
		}
		return tx.SetLastCounted(ctx, variantID, now)
	})
	if err != nil {
		return Movement{}, err
	}

	s.recordAudit(ctx, "inventory:count", variantID, map[string]any{"counted": counted})
	return mv, nil
}

// Movements returns the ledger for a variant, newest first.
func (s *Service) Movements(ctx context.Context, variantID int64, page, perPage int) ([]Movement, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	return s.repo.ListMovements(ctx, variantID, perPage, (page-1)*perPage)
}

// LowStock returns records at or below their reorder level.
func (s *Service) LowStock(ctx context.Context) ([]Record, error) {
	return s.repo.ListLowStock(ctx)
}

func (s *Service) recordAudit(ctx context.Context, action string, variantID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "variant_inventory",
		EntityID: strconv.FormatInt(variantID, 10),
		Meta:     meta,
	})
}
