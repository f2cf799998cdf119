package variants

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridianpos/meridian/internal/attributes"
	"github.com/meridianpos/meridian/internal/inventory"
	"github.com/meridianpos/meridian/internal/masterdata/products"
	"github.com/meridianpos/meridian/internal/rules"
	"github.com/meridianpos/meridian/internal/shared"
)

// memVariantRepo is an in-memory RepositoryPort whose transactions stage
// writes and merge them only on success.
type memVariantRepo struct {
	nextID    int64
	variants  map[int64]Variant
	records   map[int64]*inventory.Record
	movements []inventory.Movement

	failDuplicates int
}

func newMemVariantRepo() *memVariantRepo {
	return &memVariantRepo{
		nextID:   1,
		variants: map[int64]Variant{},
		records:  map[int64]*inventory.Record{},
	}
}

type memTx struct {
	repo        *memVariantRepo
	variants    []Variant
	deactivated []int64
	ledger      *memTxLedger
}

type memTxLedger struct {
	repo      *memVariantRepo
	inserted  map[int64]*inventory.Record
	movements []inventory.Movement
}

func (m *memVariantRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	tx := &memTx{repo: m, ledger: &memTxLedger{repo: m, inserted: map[int64]*inventory.Record{}}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for _, id := range tx.deactivated {
		v := m.variants[id]
		v.IsActive = false
		m.variants[id] = v
	}
	for _, v := range tx.variants {
		m.variants[v.ID] = v
	}
	for id, rec := range tx.ledger.inserted {
		m.records[id] = rec
	}
	m.movements = append(m.movements, tx.ledger.movements...)
	return nil
}

func (t *memTx) InsertVariant(_ context.Context, v Variant) (Variant, error) {
	if t.repo.failDuplicates > 0 {
		t.repo.failDuplicates--
		return Variant{}, shared.ErrDuplicate
	}
	v.ID = t.repo.nextID
	t.repo.nextID++
	v.CreatedAt = time.Now()
	v.UpdatedAt = v.CreatedAt
	t.variants = append(t.variants, v)
	return v, nil
}

func (t *memTx) InsertVariantValue(_ context.Context, variantID, valueID int64) error {
	for i := range t.variants {
		if t.variants[i].ID == variantID {
			t.variants[i].ValueIDs = append(t.variants[i].ValueIDs, valueID)
		}
	}
	return nil
}

func (t *memTx) DeactivateProductVariants(_ context.Context, productID int64) (int64, error) {
	var n int64
	for id, v := range t.repo.variants {
		if v.ProductID == productID && v.IsActive {
			t.deactivated = append(t.deactivated, id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) Ledger() inventory.TxRepository { return t.ledger }

func (l *memTxLedger) RecordForUpdate(_ context.Context, variantID int64) (inventory.Record, error) {
	if rec, ok := l.inserted[variantID]; ok {
		return *rec, nil
	}
	if rec, ok := l.repo.records[variantID]; ok {
		return *rec, nil
	}
	return inventory.Record{}, shared.ErrNotFound
}

func (l *memTxLedger) InsertRecord(_ context.Context, rec inventory.Record) (inventory.Record, error) {
	rec.ID = rec.VariantID
	l.inserted[rec.VariantID] = &rec
	return rec, nil
}

func (l *memTxLedger) SetQuantity(_ context.Context, variantID, quantity int64) error {
	if rec, ok := l.inserted[variantID]; ok {
		rec.Quantity = quantity
		return nil
	}
	if rec, ok := l.repo.records[variantID]; ok {
		rec.Quantity = quantity
		return nil
	}
	return shared.ErrNotFound
}

func (l *memTxLedger) SetReserved(_ context.Context, variantID, reserved int64) error {
	if rec, ok := l.inserted[variantID]; ok {
		rec.Reserved = reserved
		return nil
	}
	return shared.ErrNotFound
}

func (l *memTxLedger) SetLastCounted(_ context.Context, variantID int64, at time.Time) error {
	if rec, ok := l.inserted[variantID]; ok {
		rec.LastCountedAt = &at
		return nil
	}
	if rec, ok := l.repo.records[variantID]; ok {
		rec.LastCountedAt = &at
		return nil
	}
	return shared.ErrNotFound
}

func (l *memTxLedger) InsertMovement(_ context.Context, mv inventory.Movement) (inventory.Movement, error) {
	mv.ID = int64(len(l.movements) + len(l.repo.movements) + 1)
	l.movements = append(l.movements, mv)
	return mv, nil
}

func (m *memVariantRepo) Get(_ context.Context, id int64) (Variant, error) {
	v, ok := m.variants[id]
	if !ok {
		return Variant{}, shared.ErrNotFound
	}
	return v, nil
}

func (m *memVariantRepo) ListByProduct(_ context.Context, productID int64, activeOnly bool) ([]Variant, error) {
	var list []Variant
	for _, v := range m.variants {
		if v.ProductID == productID && (!activeOnly || v.IsActive) {
			list = append(list, v)
		}
	}
	return list, nil
}

func (m *memVariantRepo) FindByValues(_ context.Context, productID int64, valueIDs []int64) (Variant, error) {
	want := valueSetKey(valueIDs)
	for _, v := range m.variants {
		if v.ProductID == productID && v.IsActive && valueSetKey(v.ValueIDs) == want {
			return v, nil
		}
	}
	return Variant{}, shared.ErrNotFound
}

func (m *memVariantRepo) SetActive(_ context.Context, id int64, active bool) error {
	v, ok := m.variants[id]
	if !ok {
		return shared.ErrNotFound
	}
	v.IsActive = active
	m.variants[id] = v
	return nil
}

func (m *memVariantRepo) SetDefault(_ context.Context, id int64) error {
	target, ok := m.variants[id]
	if !ok {
		return shared.ErrNotFound
	}
	for vid, v := range m.variants {
		if v.ProductID == target.ProductID {
			v.IsDefault = vid == id
			m.variants[vid] = v
		}
	}
	return nil
}

func (m *memVariantRepo) UpdatePrice(_ context.Context, id int64, price float64) error {
	v, ok := m.variants[id]
	if !ok {
		return shared.ErrNotFound
	}
	v.Price = price
	m.variants[id] = v
	return nil
}

// stubAttrs serves a fixed attribute set.
type stubAttrs struct {
	set []attributes.BoundAttribute
}

func (s *stubAttrs) ProductAttributeSet(_ context.Context, _ int64) ([]attributes.BoundAttribute, error) {
	return s.set, nil
}

func (s *stubAttrs) EffectiveAdjustments(_ context.Context, _ int64, valueIDs []int64) ([]attributes.Adjustment, error) {
	selected := map[int64]bool{}
	for _, id := range valueIDs {
		selected[id] = true
	}
	var out []attributes.Adjustment
	for _, bound := range s.set {
		if !bound.Binding.AffectsPrice {
			continue
		}
		for _, opt := range bound.Values {
			if selected[opt.ID] && opt.PriceAdjustment != 0 {
				out = append(out, attributes.Adjustment{AttributeValueID: opt.ID, Amount: opt.PriceAdjustment, Kind: opt.AdjustmentType})
			}
		}
	}
	return out, nil
}

// stubRules backs the rule port with a real compiled index.
type stubRules struct {
	idx *rules.Index
}

func (s *stubRules) ValidSelections(_ context.Context, _ int64, axes []rules.Axis, limit int) ([]rules.Selection, error) {
	return s.idx.ValidSelections(axes, limit), nil
}

func (s *stubRules) Validate(_ context.Context, _ int64, sel rules.Selection) (rules.Result, error) {
	return s.idx.Validate(sel), nil
}

type stubProducts struct {
	product products.Product
}

func (s *stubProducts) Get(_ context.Context, id int64) (products.Product, error) {
	if id != s.product.ID {
		return products.Product{}, shared.ErrNotFound
	}
	return s.product, nil
}

// Fixture: product 1 "Tee" at 100.00, color axis (11 red +5 fixed, 12 blue)
// and size axis (21 small, 22 large +10 percent).
func fixtureAttrs() *stubAttrs {
	return &stubAttrs{set: []attributes.BoundAttribute{
		{
			Binding: attributes.Binding{ID: 1, ProductID: 1, AttributeTypeID: 1, IsRequired: true, AffectsPrice: true},
			Type:    attributes.AttributeType{ID: 1, Name: "color", IsActive: true},
			Values: []attributes.ValueOption{
				{AttributeValue: attributes.AttributeValue{ID: 11, AttributeTypeID: 1, DisplayValue: "Red", IsActive: true}, PriceAdjustment: 5, AdjustmentType: attributes.AdjustmentFixed},
				{AttributeValue: attributes.AttributeValue{ID: 12, AttributeTypeID: 1, DisplayValue: "Blue", IsActive: true}, AdjustmentType: attributes.AdjustmentFixed},
			},
		},
		{
			Binding: attributes.Binding{ID: 2, ProductID: 1, AttributeTypeID: 2, IsRequired: true, AffectsPrice: true},
			Type:    attributes.AttributeType{ID: 2, Name: "size", IsActive: true},
			Values: []attributes.ValueOption{
				{AttributeValue: attributes.AttributeValue{ID: 21, AttributeTypeID: 2, DisplayValue: "Small", IsActive: true}, AdjustmentType: attributes.AdjustmentFixed},
				{AttributeValue: attributes.AttributeValue{ID: 22, AttributeTypeID: 2, DisplayValue: "Large", IsActive: true}, PriceAdjustment: 10, AdjustmentType: attributes.AdjustmentPercentage},
			},
		},
	}}
}

func fixtureService(repo *memVariantRepo, ruleSet []rules.Rule) *Service {
	return NewService(
		repo,
		fixtureAttrs(),
		&stubRules{idx: rules.BuildIndex(ruleSet)},
		&stubProducts{product: products.Product{ID: 1, Code: "TEE", Name: "Tee", Price: 100}},
		nil,
		500,
	)
}

func TestGenerateFullGrid(t *testing.T) {
	repo := newMemVariantRepo()
	svc := fixtureService(repo, nil)

	result, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.NoError(t, err)
	require.Len(t, result.Created, 4)
	require.Zero(t, result.Rejected)

	for _, v := range result.Created {
		require.Len(t, v.ValueIDs, 2)
		rec, ok := repo.records[v.ID]
		require.True(t, ok, "every variant gets an inventory record")
		require.Zero(t, rec.Quantity)
	}
}

func TestGeneratePricesEachCombination(t *testing.T) {
	repo := newMemVariantRepo()
	svc := fixtureService(repo, nil)

	result, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.NoError(t, err)

	prices := map[string]float64{}
	for _, v := range result.Created {
		prices[valueSetKey(v.ValueIDs)] = v.Price
	}
	require.InDelta(t, 105, prices[valueSetKey([]int64{11, 21})], 1e-9)
	require.InDelta(t, 115, prices[valueSetKey([]int64{11, 22})], 1e-9)
	require.InDelta(t, 100, prices[valueSetKey([]int64{12, 21})], 1e-9)
	require.InDelta(t, 110, prices[valueSetKey([]int64{12, 22})], 1e-9)
}

func TestGenerateSkipsExcludedCombinations(t *testing.T) {
	repo := newMemVariantRepo()
	svc := fixtureService(repo, []rules.Rule{
		{ID: 1, Kind: rules.KindExclusion, PrimaryTypeID: 1, PrimaryValueID: 11, SecondaryTypeID: 2, SecondaryValueID: 22, IsActive: true},
	})

	result, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.NoError(t, err)
	require.Len(t, result.Created, 3)
	require.Equal(t, 1, result.Rejected)
	for _, v := range result.Created {
		require.NotEqual(t, valueSetKey([]int64{11, 22}), valueSetKey(v.ValueIDs))
	}
}

func TestGenerateAddMissingSkipsExisting(t *testing.T) {
	repo := newMemVariantRepo()
	svc := fixtureService(repo, nil)

	first, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.NoError(t, err)
	require.Len(t, first.Created, 4)

	second, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: AddMissing})
	require.NoError(t, err)
	require.Empty(t, second.Created)
	require.Equal(t, 4, second.Skipped)
}

func TestGenerateRegenerateAllRetiresExisting(t *testing.T) {
	repo := newMemVariantRepo()
	svc := fixtureService(repo, nil)

	_, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.NoError(t, err)

	result, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.NoError(t, err)
	require.Equal(t, 4, result.Retired)
	require.Len(t, result.Created, 4)

	active, err := repo.ListByProduct(context.Background(), 1, true)
	require.NoError(t, err)
	require.Len(t, active, 4)
}

func TestGenerateInitialQuantityWritesMovement(t *testing.T) {
	repo := newMemVariantRepo()
	svc := fixtureService(repo, nil)

	result, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll, InitialQuantity: 7})
	require.NoError(t, err)
	require.Len(t, repo.movements, len(result.Created))
	for _, v := range result.Created {
		require.Equal(t, int64(7), repo.records[v.ID].Quantity)
	}
	for _, mv := range repo.movements {
		require.Equal(t, inventory.MovementAdjustment, mv.Type)
		require.Equal(t, int64(7), mv.Quantity)
	}
}

func TestGenerateRetriesOnSKUCollision(t *testing.T) {
	repo := newMemVariantRepo()
	repo.failDuplicates = 1
	svc := fixtureService(repo, nil)

	result, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.NoError(t, err)
	require.Len(t, result.Created, 4)
}

func TestGenerateCombinationCap(t *testing.T) {
	repo := newMemVariantRepo()
	svc := fixtureService(repo, nil)
	svc.maxCombinations = 3

	_, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.ErrorIs(t, err, ErrTooManyCombinations)
}

func TestGenerateWithoutBindings(t *testing.T) {
	repo := newMemVariantRepo()
	svc := NewService(
		repo,
		&stubAttrs{},
		&stubRules{idx: rules.BuildIndex(nil)},
		&stubProducts{product: products.Product{ID: 1, Code: "TEE", Name: "Tee", Price: 100}},
		nil,
		500,
	)

	_, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.ErrorIs(t, err, ErrNoAttributes)
}

func TestGenerateSnapshotsBasePrice(t *testing.T) {
	repo := newMemVariantRepo()
	svc := fixtureService(repo, nil)

	result, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.NoError(t, err)
	for _, v := range result.Created {
		require.InDelta(t, 100, v.BasePrice, 1e-9)
	}
}

func TestSetDefaultIsExclusivePerProduct(t *testing.T) {
	repo := newMemVariantRepo()
	svc := fixtureService(repo, nil)

	result, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.NoError(t, err)
	require.NoError(t, svc.SetDefault(context.Background(), result.Created[0].ID))
	require.NoError(t, svc.SetDefault(context.Background(), result.Created[1].ID))

	var defaults int
	for _, v := range repo.variants {
		if v.IsDefault {
			defaults++
			require.Equal(t, result.Created[1].ID, v.ID)
		}
	}
	require.Equal(t, 1, defaults)
}

func TestQuoteComputesPrice(t *testing.T) {
	svc := fixtureService(newMemVariantRepo(), nil)

	quote, err := svc.Quote(context.Background(), 1, []int64{11, 22})
	require.NoError(t, err)
	require.InDelta(t, 100, quote.BasePrice, 1e-9)
	require.InDelta(t, 115, quote.Price, 1e-9)
	require.Contains(t, quote.Name, "Red")
	require.Contains(t, quote.Name, "Large")
}

func TestQuoteRejectsInvalidSelections(t *testing.T) {
	svc := fixtureService(newMemVariantRepo(), []rules.Rule{
		{ID: 1, Kind: rules.KindExclusion, PrimaryTypeID: 1, PrimaryValueID: 11, SecondaryTypeID: 2, SecondaryValueID: 22, IsActive: true},
	})

	_, err := svc.Quote(context.Background(), 1, []int64{11, 22})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Quote(context.Background(), 1, []int64{11, 12})
	require.ErrorIs(t, err, shared.ErrValidation, "two values of one attribute type")

	_, err = svc.Quote(context.Background(), 1, []int64{11})
	require.ErrorIs(t, err, shared.ErrValidation, "required size axis missing")

	_, err = svc.Quote(context.Background(), 1, []int64{11, 99})
	require.ErrorIs(t, err, shared.ErrValidation, "unknown value id")
}

func TestFindByValuesExactMatch(t *testing.T) {
	repo := newMemVariantRepo()
	svc := fixtureService(repo, nil)

	_, err := svc.Generate(context.Background(), GenerateInput{ProductID: 1, Mode: RegenerateAll})
	require.NoError(t, err)

	found, err := svc.FindByValues(context.Background(), 1, []int64{22, 11})
	require.NoError(t, err)
	require.Equal(t, valueSetKey([]int64{11, 22}), valueSetKey(found.ValueIDs))
	require.NotEmpty(t, found.SKU)

	_, err = svc.FindByValues(context.Background(), 1, []int64{11})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
