package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianpos/meridian/internal/shared"
)

const testProduct int64 = 7

type memoryRuleRepo struct {
	nextID    int64
	rules     map[int64]Rule
	listCalls int
}

func newMemoryRuleRepo() *memoryRuleRepo {
	return &memoryRuleRepo{nextID: 1, rules: map[int64]Rule{}}
}

func (m *memoryRuleRepo) Insert(_ context.Context, rule Rule) (Rule, error) {
	rule.ID = m.nextID
	m.nextID++
	m.rules[rule.ID] = rule
	return rule, nil
}

func (m *memoryRuleRepo) Get(_ context.Context, id int64) (Rule, error) {
	r, ok := m.rules[id]
	if !ok {
		return Rule{}, shared.ErrNotFound
	}
	return r, nil
}

func (m *memoryRuleRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.rules[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.rules, id)
	return nil
}

func (m *memoryRuleRepo) SetActive(_ context.Context, id int64, active bool) error {
	r, ok := m.rules[id]
	if !ok {
		return shared.ErrNotFound
	}
	r.IsActive = active
	m.rules[id] = r
	return nil
}

func (m *memoryRuleRepo) ListByProduct(_ context.Context, productID int64) ([]Rule, error) {
	m.listCalls++
	var list []Rule
	for _, r := range m.rules {
		if r.ProductID == productID {
			list = append(list, r)
		}
	}
	return list, nil
}

func TestCreateRejectsSameTypeRule(t *testing.T) {
	svc := NewService(newMemoryRuleRepo())

	_, err := svc.Create(context.Background(), Rule{
		ProductID:        testProduct,
		Kind:             KindExclusion,
		PrimaryTypeID:    colorType,
		PrimaryValueID:   red,
		SecondaryTypeID:  colorType,
		SecondaryValueID: blue,
		IsActive:         true,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRequiresProduct(t *testing.T) {
	svc := NewService(newMemoryRuleRepo())

	_, err := svc.Create(context.Background(), Rule{
		Kind:             KindExclusion,
		PrimaryTypeID:    colorType,
		PrimaryValueID:   red,
		SecondaryTypeID:  sizeType,
		SecondaryValueID: large,
		IsActive:         true,
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestIndexIsCachedAndInvalidatedOnWrite(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc := NewService(repo)
	ctx := context.Background()

	res, err := svc.Validate(ctx, testProduct, Selection{colorType: red, sizeType: large})
	require.NoError(t, err)
	require.True(t, res.Valid)

	_, err = svc.Validate(ctx, testProduct, Selection{colorType: blue, sizeType: small})
	require.NoError(t, err)
	require.Equal(t, 1, repo.listCalls, "repeated reads serve the cached index")

	_, err = svc.Create(ctx, Rule{
		ProductID:        testProduct,
		Kind:             KindExclusion,
		PrimaryTypeID:    colorType,
		PrimaryValueID:   red,
		SecondaryTypeID:  sizeType,
		SecondaryValueID: large,
		IsActive:         true,
	})
	require.NoError(t, err)

	res, err = svc.Validate(ctx, testProduct, Selection{colorType: red, sizeType: large})
	require.NoError(t, err)
	require.False(t, res.Valid, "the new rule takes effect after invalidation")
	require.Equal(t, 2, repo.listCalls)
}

func TestRulesAreScopedPerProduct(t *testing.T) {
	repo := newMemoryRuleRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, Rule{
		ProductID:        testProduct,
		Kind:             KindExclusion,
		PrimaryTypeID:    colorType,
		PrimaryValueID:   red,
		SecondaryTypeID:  sizeType,
		SecondaryValueID: large,
		IsActive:         true,
	})
	require.NoError(t, err)

	res, err := svc.Validate(ctx, testProduct, Selection{colorType: red, sizeType: large})
	require.NoError(t, err)
	require.False(t, res.Valid)

	res, err = svc.Validate(ctx, testProduct+1, Selection{colorType: red, sizeType: large})
	require.NoError(t, err)
	require.True(t, res.Valid, "another product is untouched by the rule")
}
