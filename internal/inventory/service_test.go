package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridianpos/meridian/internal/shared"
)

type memoryLedger struct {
	nextID    int64
	records   map[int64]*Record
	movements []Movement
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{nextID: 1, records: map[int64]*Record{}}
}

func (m *memoryLedger) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryLedger) RecordForUpdate(_ context.Context, variantID int64) (Record, error) {
	rec, ok := m.records[variantID]
	if !ok {
		return Record{}, shared.ErrNotFound
	}
	return *rec, nil
}

func (m *memoryLedger) InsertRecord(_ context.Context, rec Record) (Record, error) {
	rec.ID = m.id()
	rec.UpdatedAt = time.Now()
	m.records[rec.VariantID] = &rec
	return rec, nil
}

func (m *memoryLedger) SetQuantity(_ context.Context, variantID, quantity int64) error {
	rec, ok := m.records[variantID]
	if !ok {
		return shared.ErrNotFound
	}
	rec.Quantity = quantity
	return nil
}

func (m *memoryLedger) SetReserved(_ context.Context, variantID, reserved int64) error {
	rec, ok := m.records[variantID]
	if !ok {
		return shared.ErrNotFound
	}
	rec.Reserved = reserved
	return nil
}

func (m *memoryLedger) SetLastCounted(_ context.Context, variantID int64, at time.Time) error {
	rec, ok := m.records[variantID]
	if !ok {
		return shared.ErrNotFound
	}
	rec.LastCountedAt = &at
	return nil
}

func (m *memoryLedger) InsertMovement(_ context.Context, mv Movement) (Movement, error) {
	mv.ID = m.id()
	mv.CreatedAt = time.Now()
	m.movements = append(m.movements, mv)
	return mv, nil
}

type memoryInventoryRepo struct {
	ledger *memoryLedger
}

func newMemoryInventoryRepo() *memoryInventoryRepo {
	return &memoryInventoryRepo{ledger: newMemoryLedger()}
}

func (m *memoryInventoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return fn(ctx, m.ledger)
}

func (m *memoryInventoryRepo) Get(_ context.Context, variantID int64) (Record, error) {
	rec, ok := m.ledger.records[variantID]
	if !ok {
		return Record{}, shared.ErrNotFound
	}
	return *rec, nil
}

func (m *memoryInventoryRepo) SetReorderPolicy(_ context.Context, variantID, level, qty int64, location string) error {
	rec, ok := m.ledger.records[variantID]
	if !ok {
		return shared.ErrNotFound
	}
	rec.ReorderLevel = level
	rec.ReorderQty = qty
	rec.Location = location
	return nil
}

func (m *memoryInventoryRepo) ListMovements(_ context.Context, variantID int64, limit, offset int) ([]Movement, error) {
	var list []Movement
	for i := len(m.ledger.movements) - 1; i >= 0; i-- {
		if m.ledger.movements[i].VariantID == variantID {
			list = append(list, m.ledger.movements[i])
		}
	}
	return list, nil
}

func (m *memoryInventoryRepo) ListLowStock(_ context.Context) ([]Record, error) {
	var list []Record
	for _, rec := range m.ledger.records {
		if rec.NeedsReorder() {
			list = append(list, *rec)
		}
	}
	return list, nil
}

func seedStock(repo *memoryInventoryRepo, variantID, quantity int64) {
	repo.ledger.records[variantID] = &Record{ID: repo.ledger.id(), VariantID: variantID, Quantity: quantity}
}

func TestAdjustClampsAtZero(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedStock(repo, 1, 5)
	svc := NewService(repo, nil, nil, false)

	mv, err := svc.Adjust(context.Background(), AdjustInput{VariantID: 1, Type: MovementSale, Delta: -8}, "")
	require.NoError(t, err)
	require.Equal(t, int64(-5), mv.Quantity, "the movement records the clamped delta")

	rec, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, rec.Quantity)
}

func TestAdjustAllowsNegativeWhenConfigured(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedStock(repo, 1, 5)
	svc := NewService(repo, nil, nil, true)

	mv, err := svc.Adjust(context.Background(), AdjustInput{VariantID: 1, Type: MovementSale, Delta: -8}, "")
	require.NoError(t, err)
	require.Equal(t, int64(-8), mv.Quantity)

	rec, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(-3), rec.Quantity)
}

func TestAdjustCreatesMissingRecord(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil, false)

	_, err := svc.Adjust(context.Background(), AdjustInput{VariantID: 42, Type: MovementPurchase, Delta: 10}, "")
	require.NoError(t, err)

	rec, err := svc.Get(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(10), rec.Quantity)
}

func TestMovementReplayReproducesQuantity(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil, false)
	ctx := context.Background()

	steps := []AdjustInput{
		{VariantID: 1, Type: MovementPurchase, Delta: 10},
		{VariantID: 1, Type: MovementSale, Delta: -4},
		{VariantID: 1, Type: MovementSale, Delta: -9},
		{VariantID: 1, Type: MovementReturn, Delta: 2},
	}
	for _, in := range steps {
		_, err := svc.Adjust(ctx, in, "")
		require.NoError(t, err)
	}

	var replayed int64
	for _, mv := range repo.ledger.movements {
		replayed += mv.Quantity
	}
	rec, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, rec.Quantity, replayed, "ledger replay must land on the stored quantity even after clamping")
}

func TestAdjustRejectsZeroDelta(t *testing.T) {
	repo := newMemoryInventoryRepo()
	svc := NewService(repo, nil, nil, false)

	_, err := svc.Adjust(context.Background(), AdjustInput{VariantID: 1, Type: MovementAdjustment, Delta: 0}, "")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestReserveRejectsOverAvailable(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedStock(repo, 1, 5)
	repo.ledger.records[1].Reserved = 3
	svc := NewService(repo, nil, nil, false)

	err := svc.Reserve(context.Background(), 1, 3)
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.NoError(t, svc.Reserve(context.Background(), 1, 2))
	rec, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), rec.Reserved)
}

func TestReleaseClampsReservationAtZero(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedStock(repo, 1, 5)
	repo.ledger.records[1].Reserved = 2
	svc := NewService(repo, nil, nil, false)

	require.NoError(t, svc.Release(context.Background(), 1, 7))
	rec, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Zero(t, rec.Reserved)
}

func TestCountSetsQuantityAndStampsRecord(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedStock(repo, 1, 12)
	svc := NewService(repo, nil, nil, false)

	mv, err := svc.Count(context.Background(), 1, 9, "")
	require.NoError(t, err)
	require.Equal(t, int64(-3), mv.Quantity)
	require.Equal(t, MovementAdjustment, mv.Type)

	rec, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(9), rec.Quantity)
	require.NotNil(t, rec.LastCountedAt)
}

func TestCountMatchingQuantitySkipsMovement(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedStock(repo, 1, 7)
	svc := NewService(repo, nil, nil, false)

	_, err := svc.Count(context.Background(), 1, 7, "")
	require.NoError(t, err)
	require.Empty(t, repo.ledger.movements, "an accurate count writes no ledger entry")

	rec, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, rec.LastCountedAt)
}

type stubIdempotency struct {
	seen map[string]bool
}

func (s *stubIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	if s.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	s.seen[key] = true
	return nil
}

func (s *stubIdempotency) Delete(_ context.Context, key string) error {
	delete(s.seen, key)
	return nil
}

func TestAdjustIdempotencyReplayRejected(t *testing.T) {
	repo := newMemoryInventoryRepo()
	seedStock(repo, 1, 5)
	svc := NewService(repo, nil, &stubIdempotency{}, false)

	_, err := svc.Adjust(context.Background(), AdjustInput{VariantID: 1, Type: MovementPurchase, Delta: 3}, "key-1")
	require.NoError(t, err)

	_, err = svc.Adjust(context.Background(), AdjustInput{VariantID: 1, Type: MovementPurchase, Delta: 3}, "key-1")
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)

	rec, err := svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(8), rec.Quantity, "the replay must not apply twice")
}

func TestAdjustReleasesKeyOnFailure(t *testing.T) {
	repo := newMemoryInventoryRepo()
	idem := &stubIdempotency{}
	svc := NewService(repo, nil, idem, false)

	_, err := svc.Adjust(context.Background(), AdjustInput{VariantID: 1, Type: "bogus", Delta: 3}, "key-2")
	require.ErrorIs(t, err, shared.ErrValidation)

	seedStock(repo, 1, 0)
	_, err = svc.Adjust(context.Background(), AdjustInput{VariantID: 1, Type: MovementPurchase, Delta: 3}, "key-2")
	require.NoError(t, err, "a failed attempt must not burn the idempotency key")
}
