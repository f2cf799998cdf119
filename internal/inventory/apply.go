package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridianpos/meridian/internal/shared"
)

// Apply executes one stock adjustment against an open transaction. The
// record row stays locked until the caller commits. When the requested delta
// would take the quantity below zero and allowNegative is false, the delta
// is clamped so the quantity lands on zero, and the movement row records the
// clamped delta. Replaying all movements therefore reproduces the stored
// quantity exactly.
func Apply(ctx context.Context, tx TxRepository, in AdjustInput, allowNegative bool) (Movement, error) {
	if in.VariantID <= 0 {
		return Movement{}, fmt.Errorf("%w: invalid variant id", shared.ErrValidation)
	}
	if !in.Type.Valid() {
		return Movement{}, fmt.Errorf("%w: unknown movement type %q", shared.ErrValidation, in.Type)
	}
	if in.Delta == 0 {
		return Movement{}, fmt.Errorf("%w: zero quantity movement", shared.ErrValidation)
	}

	rec, err := tx.RecordForUpdate(ctx, in.VariantID)
	if errors.Is(err, shared.ErrNotFound) {
		rec, err = tx.InsertRecord(ctx, Record{VariantID: in.VariantID})
	}
	if err != nil {
		return Movement{}, err
	}

	target := rec.Quantity + in.Delta
	if target < 0 && !allowNegative {
		target = 0
	}
	applied := target - rec.Quantity

	mv, err := tx.InsertMovement(ctx, Movement{
		VariantID:     in.VariantID,
		Type:          in.Type,
		Quantity:      applied,
		ReferenceType: in.ReferenceType,
		ReferenceID:   in.ReferenceID,
		Note:          in.Note,
		ActorID:       in.ActorID,
	})
	if err != nil {
		return Movement{}, err
	}
	if err := tx.SetQuantity(ctx, in.VariantID, target); err != nil {
		return Movement{}, err
	}
	return mv, nil
}
