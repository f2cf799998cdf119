package categories

import (
	"context"
	"fmt"
	"strings"

	"github.com/meridianpos/meridian/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id int64) (Category, error) {
	if id <= 0 {
		return Category{}, fmt.Errorf("%w: invalid category id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, category Category) (Category, error) {
	if strings.TrimSpace(category.Name) == "" {
		return Category{}, fmt.Errorf("%w: category name is required", shared.ErrValidation)
	}
	return s.repo.Create(ctx, category)
}

func (s *Service) Update(ctx context.Context, id int64, category Category) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid category id", shared.ErrValidation)
	}
	if strings.TrimSpace(category.Name) == "" {
		return fmt.Errorf("%w: category name is required", shared.ErrValidation)
	}
	return s.repo.Update(ctx, id, category)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid category id", shared.ErrValidation)
	}
	return s.repo.Delete(ctx, id)
}
