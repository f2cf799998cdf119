package products

import (
	"fmt"
	"strings"

	"github.com/meridianpos/meridian/internal/shared"
)

func (s *Service) validate(p Product) error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("%w: product code is required", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: product name is required", shared.ErrValidation)
	}
	if p.Price < 0 {
		return fmt.Errorf("%w: price must be >= 0", shared.ErrValidation)
	}
	if p.Cost < 0 {
		return fmt.Errorf("%w: cost must be >= 0", shared.ErrValidation)
	}
	return nil
}

func (s *Service) validateUpdate(u UpdateInput) error {
	if u.Code != nil && strings.TrimSpace(*u.Code) == "" {
		return fmt.Errorf("%w: product code cannot be blank", shared.ErrValidation)
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return fmt.Errorf("%w: product name cannot be blank", shared.ErrValidation)
	}
	if u.Price != nil && *u.Price < 0 {
		return fmt.Errorf("%w: price must be >= 0", shared.ErrValidation)
	}
	if u.Cost != nil && *u.Cost < 0 {
		return fmt.Errorf("%w: cost must be >= 0", shared.ErrValidation)
	}
	return nil
}
