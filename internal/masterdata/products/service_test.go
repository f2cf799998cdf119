package products

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	mdshared "github.com/meridianpos/meridian/internal/masterdata/shared"
	"github.com/meridianpos/meridian/internal/shared"
)

type memoryRepo struct {
	byID   map[int64]Product
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: make(map[int64]Product)}
}

func (r *memoryRepo) List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range r.byID {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := r.byID[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) Create(ctx context.Context, product Product) (Product, error) {
	for _, existing := range r.byID {
		if existing.Code == product.Code {
			return Product{}, shared.ErrDuplicate
		}
	}
	r.nextID++
	product.ID = r.nextID
	r.byID[product.ID] = product
	return product, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, input UpdateInput) error {
	p, ok := r.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.Price != nil {
		p.Price = *input.Price
	}
	r.byID[id] = p
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := r.byID[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func TestCreateRejectsBlankCode(t *testing.T) {
	svc := NewService(newMemoryRepo())
	_, err := svc.Create(context.Background(), Product{Name: "Shirt"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestDuplicateCodeSurfacesConflict(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Product{Code: "TSHIRT", Name: "T-Shirt", Price: 100})
	require.NoError(t, err)
	_, err = svc.Create(ctx, Product{Code: "TSHIRT", Name: "Other", Price: 50})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestBasePriceReflectsUpdates(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	created, err := svc.Create(ctx, Product{Code: "TSHIRT", Name: "T-Shirt", Price: 100})
	require.NoError(t, err)

	price, err := svc.BasePrice(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 100.0, price)

	newPrice := 120.0
	require.NoError(t, svc.Update(ctx, created.ID, UpdateInput{Price: &newPrice}))
	price, err = svc.BasePrice(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, 120.0, price)
}

func TestEmptyUpdateIsNoop(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	require.NoError(t, svc.Update(context.Background(), 999, UpdateInput{}))
}
