package products

import (
	"context"
	"fmt"

	mdshared "github.com/meridianpos/meridian/internal/masterdata/shared"
	"github.com/meridianpos/meridian/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters mdshared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	if input.Empty() {
		return nil
	}
	if err := s.validateUpdate(input); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, input)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}

// BasePrice exposes the current unit price to the variant pricing calculator.
func (s *Service) BasePrice(ctx context.Context, productID int64) (float64, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.Price, nil
}

// CostPrice exposes the current cost price to the variant generator.
func (s *Service) CostPrice(ctx context.Context, productID int64) (float64, error) {
	p, err := s.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return p.Cost, nil
}
