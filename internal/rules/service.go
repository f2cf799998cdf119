package rules

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/meridianpos/meridian/internal/shared"
)

// RepositoryPort abstracts rule persistence for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, rule Rule) (Rule, error)
	Get(ctx context.Context, id int64) (Rule, error)
	Delete(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
	ListByProduct(ctx context.Context, productID int64) ([]Rule, error)
}

// Service owns the compiled rule indexes, one per product. Reads share the
// cached Index; concurrent rebuilds after invalidation collapse into a single
// ListByProduct call.
type Service struct {
	repo  RepositoryPort
	group singleflight.Group

	mu  sync.RWMutex
	idx map[int64]*Index
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, idx: make(map[int64]*Index)}
}

func (s *Service) index(ctx context.Context, productID int64) (*Index, error) {
	s.mu.RLock()
	idx := s.idx[productID]
	s.mu.RUnlock()
	if idx != nil {
		return idx, nil
	}

	v, err, _ := s.group.Do("index:"+strconv.FormatInt(productID, 10), func() (any, error) {
		ruleSet, err := s.repo.ListByProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		built := BuildIndex(ruleSet)
		s.mu.Lock()
		s.idx[productID] = built
		s.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

func (s *Service) invalidate(productID int64) {
	s.mu.Lock()
	if productID > 0 {
		delete(s.idx, productID)
	} else {
		s.idx = make(map[int64]*Index)
	}
	s.mu.Unlock()
}

// Create stores a rule and invalidates the product's compiled index.
func (s *Service) Create(ctx context.Context, rule Rule) (Rule, error) {
	if rule.ProductID <= 0 {
		return Rule{}, fmt.Errorf("%w: rule product is required", shared.ErrValidation)
	}
	if !rule.Kind.Valid() {
		return Rule{}, fmt.Errorf("%w: unknown rule kind %q", shared.ErrValidation, rule.Kind)
	}
	if rule.PrimaryValueID <= 0 || rule.SecondaryValueID <= 0 {
		return Rule{}, fmt.Errorf("%w: both rule values are required", shared.ErrValidation)
	}
	if rule.PrimaryValueID == rule.SecondaryValueID {
		return Rule{}, fmt.Errorf("%w: a rule cannot reference one value twice", shared.ErrValidation)
	}
	if rule.PrimaryTypeID == rule.SecondaryTypeID {
		return Rule{}, fmt.Errorf("%w: rules span two distinct attribute types", shared.ErrValidation)
	}
	created, err := s.repo.Insert(ctx, rule)
	if err != nil {
		return Rule{}, err
	}
	s.invalidate(created.ProductID)
	return created, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Rule, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(rule.ProductID)
	return nil
}

func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	rule, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.invalidate(rule.ProductID)
	return nil
}

func (s *Service) ListByProduct(ctx context.Context, productID int64) ([]Rule, error) {
	return s.repo.ListByProduct(ctx, productID)
}

// Validate checks a complete selection against the product's active rules.
func (s *Service) Validate(ctx context.Context, productID int64, sel Selection) (Result, error) {
	idx, err := s.index(ctx, productID)
	if err != nil {
		return Result{}, err
	}
	return idx.Validate(sel), nil
}

// CompatibleValues narrows one axis to the values admissible alongside the
// partial selection.
func (s *Service) CompatibleValues(ctx context.Context, productID int64, partial Selection, axis Axis) ([]int64, error) {
	idx, err := s.index(ctx, productID)
	if err != nil {
		return nil, err
	}
	return idx.CompatibleValues(partial, axis), nil
}

// ValidSelections enumerates all rule-satisfying combinations over the axes.
func (s *Service) ValidSelections(ctx context.Context, productID int64, axes []Axis, limit int) ([]Selection, error) {
	idx, err := s.index(ctx, productID)
	if err != nil {
		return nil, err
	}
	return idx.ValidSelections(axes, limit), nil
}
