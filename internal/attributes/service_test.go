package attributes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianpos/meridian/internal/shared"
)

type memoryRepo struct {
	nextID    int64
	types     map[int64]AttributeType
	values    map[int64]AttributeValue
	bindings  map[int64]Binding
	overrides map[int64]ValueOverride
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		nextID:    1,
		types:     map[int64]AttributeType{},
		values:    map[int64]AttributeValue{},
		bindings:  map[int64]Binding{},
		overrides: map[int64]ValueOverride{},
	}
}

func (m *memoryRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryRepo) InsertType(_ context.Context, at AttributeType) (AttributeType, error) {
	for _, existing := range m.types {
		if existing.Name == at.Name {
			return AttributeType{}, shared.ErrDuplicate
		}
	}
	at.ID = m.id()
	m.types[at.ID] = at
	return at, nil
}

func (m *memoryRepo) UpdateType(_ context.Context, at AttributeType) error {
	if _, ok := m.types[at.ID]; !ok {
		return shared.ErrNotFound
	}
	m.types[at.ID] = at
	return nil
}

func (m *memoryRepo) GetType(_ context.Context, id int64) (AttributeType, error) {
	at, ok := m.types[id]
	if !ok {
		return AttributeType{}, shared.ErrNotFound
	}
	return at, nil
}

func (m *memoryRepo) ListTypes(_ context.Context) ([]AttributeType, error) {
	var list []AttributeType
	for _, at := range m.types {
		list = append(list, at)
	}
	return list, nil
}

func (m *memoryRepo) DeleteTypeCascade(_ context.Context, typeID int64) error {
	if _, ok := m.types[typeID]; !ok {
		return shared.ErrNotFound
	}
	delete(m.types, typeID)
	for id, v := range m.values {
		if v.AttributeTypeID == typeID {
			delete(m.values, id)
		}
	}
	for id, b := range m.bindings {
		if b.AttributeTypeID == typeID {
			for oid, o := range m.overrides {
				if o.BindingID == b.ID {
					delete(m.overrides, oid)
				}
			}
			delete(m.bindings, id)
		}
	}
	return nil
}

func (m *memoryRepo) InsertValue(_ context.Context, av AttributeValue) (AttributeValue, error) {
	if _, ok := m.types[av.AttributeTypeID]; !ok {
		return AttributeValue{}, shared.ErrNotFound
	}
	av.ID = m.id()
	m.values[av.ID] = av
	return av, nil
}

func (m *memoryRepo) UpdateValue(_ context.Context, av AttributeValue) error {
	existing, ok := m.values[av.ID]
	if !ok {
		return shared.ErrNotFound
	}
	av.AttributeTypeID = existing.AttributeTypeID
	m.values[av.ID] = av
	return nil
}

func (m *memoryRepo) GetValue(_ context.Context, id int64) (AttributeValue, error) {
	av, ok := m.values[id]
	if !ok {
		return AttributeValue{}, shared.ErrNotFound
	}
	return av, nil
}

func (m *memoryRepo) ListValues(_ context.Context, typeID int64) ([]AttributeValue, error) {
	var list []AttributeValue
	for _, av := range m.values {
		if av.AttributeTypeID == typeID {
			list = append(list, av)
		}
	}
	return list, nil
}

func (m *memoryRepo) DeleteValueCascade(_ context.Context, valueID int64) error {
	if _, ok := m.values[valueID]; !ok {
		return shared.ErrNotFound
	}
	delete(m.values, valueID)
	for oid, o := range m.overrides {
		if o.AttributeValueID == valueID {
			delete(m.overrides, oid)
		}
	}
	return nil
}

func (m *memoryRepo) GetBinding(_ context.Context, productID, typeID int64) (Binding, error) {
	for _, b := range m.bindings {
		if b.ProductID == productID && b.AttributeTypeID == typeID {
			return b, nil
		}
	}
	return Binding{}, shared.ErrNotFound
}

func (m *memoryRepo) GetBindingByID(_ context.Context, bindingID int64) (Binding, error) {
	b, ok := m.bindings[bindingID]
	if !ok {
		return Binding{}, shared.ErrNotFound
	}
	return b, nil
}

func (m *memoryRepo) InsertBinding(_ context.Context, b Binding) (Binding, error) {
	for _, existing := range m.bindings {
		if existing.ProductID == b.ProductID && existing.AttributeTypeID == b.AttributeTypeID {
			return Binding{}, shared.ErrDuplicate
		}
	}
	b.ID = m.id()
	m.bindings[b.ID] = b
	return b, nil
}

func (m *memoryRepo) DeleteBindingCascade(_ context.Context, bindingID int64) error {
	if _, ok := m.bindings[bindingID]; !ok {
		return shared.ErrNotFound
	}
	delete(m.bindings, bindingID)
	for oid, o := range m.overrides {
		if o.BindingID == bindingID {
			delete(m.overrides, oid)
		}
	}
	return nil
}

func (m *memoryRepo) ListBindings(_ context.Context, productID int64) ([]Binding, error) {
	var list []Binding
	for _, b := range m.bindings {
		if b.ProductID == productID {
			list = append(list, b)
		}
	}
	return list, nil
}

func (m *memoryRepo) UpsertOverride(_ context.Context, o ValueOverride) (ValueOverride, error) {
	for id, existing := range m.overrides {
		if existing.BindingID == o.BindingID && existing.AttributeValueID == o.AttributeValueID {
			o.ID = id
			m.overrides[id] = o
			return o, nil
		}
	}
	o.ID = m.id()
	m.overrides[o.ID] = o
	return o, nil
}

func (m *memoryRepo) ProductAttributeSet(_ context.Context, productID int64) ([]BoundAttribute, error) {
	var result []BoundAttribute
	for _, b := range m.bindings {
		if b.ProductID != productID {
			continue
		}
		bound := BoundAttribute{Binding: b, Type: m.types[b.AttributeTypeID]}
		for _, av := range m.values {
			if av.AttributeTypeID != b.AttributeTypeID || !av.IsActive {
				continue
			}
			opt := ValueOption{AttributeValue: av, AdjustmentType: AdjustmentFixed}
			for _, o := range m.overrides {
				if o.BindingID == b.ID && o.AttributeValueID == av.ID && o.IsActive {
					opt.PriceAdjustment = o.PriceAdjustment
					opt.AdjustmentType = o.AdjustmentType
					opt.IsDefault = o.IsDefault
				}
			}
			bound.Values = append(bound.Values, opt)
		}
		result = append(result, bound)
	}
	return result, nil
}

func (m *memoryRepo) EffectiveAdjustments(_ context.Context, productID int64, valueIDs []int64) ([]Adjustment, error) {
	selected := map[int64]bool{}
	for _, id := range valueIDs {
		selected[id] = true
	}
	var adjustments []Adjustment
	for _, o := range m.overrides {
		b, ok := m.bindings[o.BindingID]
		if !ok || b.ProductID != productID || !b.AffectsPrice || !o.IsActive {
			continue
		}
		if selected[o.AttributeValueID] {
			adjustments = append(adjustments, Adjustment{
				AttributeValueID: o.AttributeValueID,
				Amount:           o.PriceAdjustment,
				Kind:             o.AdjustmentType,
			})
		}
	}
	return adjustments, nil
}

func newTestService(repo RepositoryPort) *Service {
	return NewService(repo, nil, nil)
}

func seedType(t *testing.T, svc *Service, name string) AttributeType {
	t.Helper()
	at, err := svc.CreateType(context.Background(), AttributeType{Name: name, IsActive: true})
	require.NoError(t, err)
	return at
}

func TestCreateTypeRejectsDuplicateName(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.CreateType(context.Background(), AttributeType{Name: "color", IsActive: true})
	require.NoError(t, err)

	_, err = svc.CreateType(context.Background(), AttributeType{Name: "color", IsActive: true})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestCreateTypeDefaultsDisplayMetadata(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	at, err := svc.CreateType(context.Background(), AttributeType{Name: "size", IsActive: true})
	require.NoError(t, err)
	require.Equal(t, DisplaySelect, at.DisplayType)
	require.Equal(t, "size", at.DisplayName)
}

func TestBindIsIdempotent(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	at := seedType(t, svc, "color")

	first, err := svc.Bind(context.Background(), Binding{ProductID: 7, AttributeTypeID: at.ID, AffectsPrice: true})
	require.NoError(t, err)

	second, err := svc.Bind(context.Background(), Binding{ProductID: 7, AttributeTypeID: at.ID})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.True(t, second.AffectsPrice, "existing binding wins over the repeated request")
}

func TestDeleteTypeCascades(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	at := seedType(t, svc, "color")

	red, err := svc.CreateValue(context.Background(), AttributeValue{AttributeTypeID: at.ID, Value: "red", IsActive: true})
	require.NoError(t, err)

	binding, err := svc.Bind(context.Background(), Binding{ProductID: 3, AttributeTypeID: at.ID, AffectsPrice: true})
	require.NoError(t, err)

	_, err = svc.SetOverride(context.Background(), ValueOverride{
		BindingID:        binding.ID,
		AttributeValueID: red.ID,
		PriceAdjustment:  5,
		AdjustmentType:   AdjustmentFixed,
		IsActive:         true,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteType(context.Background(), at.ID))
	require.Empty(t, repo.values)
	require.Empty(t, repo.bindings)
	require.Empty(t, repo.overrides)
}

func TestSetOverrideRejectsForeignValue(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	color := seedType(t, svc, "color")
	size := seedType(t, svc, "size")

	small, err := svc.CreateValue(context.Background(), AttributeValue{AttributeTypeID: size.ID, Value: "small", IsActive: true})
	require.NoError(t, err)

	binding, err := svc.Bind(context.Background(), Binding{ProductID: 3, AttributeTypeID: color.ID})
	require.NoError(t, err)

	_, err = svc.SetOverride(context.Background(), ValueOverride{
		BindingID:        binding.ID,
		AttributeValueID: small.ID,
		PriceAdjustment:  5,
		IsActive:         true,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestEffectiveAdjustmentsOverrideVersusZero(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	at := seedType(t, svc, "size")

	small, err := svc.CreateValue(context.Background(), AttributeValue{AttributeTypeID: at.ID, Value: "small", IsActive: true})
	require.NoError(t, err)
	large, err := svc.CreateValue(context.Background(), AttributeValue{AttributeTypeID: at.ID, Value: "large", IsActive: true})
	require.NoError(t, err)

	binding, err := svc.Bind(context.Background(), Binding{ProductID: 9, AttributeTypeID: at.ID, AffectsPrice: true})
	require.NoError(t, err)

	_, err = svc.SetOverride(context.Background(), ValueOverride{
		BindingID:        binding.ID,
		AttributeValueID: large.ID,
		PriceAdjustment:  4.5,
		AdjustmentType:   AdjustmentFixed,
		IsActive:         true,
	})
	require.NoError(t, err)

	adjustments, err := svc.EffectiveAdjustments(context.Background(), 9, []int64{small.ID, large.ID})
	require.NoError(t, err)
	require.Len(t, adjustments, 1, "values without an override contribute nothing")
	require.Equal(t, large.ID, adjustments[0].AttributeValueID)
	require.InDelta(t, 4.5, adjustments[0].Amount, 1e-9)

	set, err := svc.ProductAttributeSet(context.Background(), 9)
	require.NoError(t, err)
	require.Len(t, set, 1)
	require.Len(t, set[0].Values, 2)
	for _, opt := range set[0].Values {
		if opt.ID == small.ID {
			require.Zero(t, opt.PriceAdjustment)
		}
	}
}
