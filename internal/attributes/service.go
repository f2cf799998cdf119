package attributes

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/meridianpos/meridian/internal/platform/cache"
	"github.com/meridianpos/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertType(ctx context.Context, at AttributeType) (AttributeType, error)
	UpdateType(ctx context.Context, at AttributeType) error
	GetType(ctx context.Context, id int64) (AttributeType, error)
	ListTypes(ctx context.Context) ([]AttributeType, error)
	DeleteTypeCascade(ctx context.Context, typeID int64) error

	InsertValue(ctx context.Context, av AttributeValue) (AttributeValue, error)
	UpdateValue(ctx context.Context, av AttributeValue) error
	GetValue(ctx context.Context, id int64) (AttributeValue, error)
	ListValues(ctx context.Context, typeID int64) ([]AttributeValue, error)
	DeleteValueCascade(ctx context.Context, valueID int64) error

	GetBinding(ctx context.Context, productID, typeID int64) (Binding, error)
	GetBindingByID(ctx context.Context, bindingID int64) (Binding, error)
	InsertBinding(ctx context.Context, b Binding) (Binding, error)
	DeleteBindingCascade(ctx context.Context, bindingID int64) error
	ListBindings(ctx context.Context, productID int64) ([]Binding, error)

	UpsertOverride(ctx context.Context, o ValueOverride) (ValueOverride, error)
	ProductAttributeSet(ctx context.Context, productID int64) ([]BoundAttribute, error)
	EffectiveAdjustments(ctx context.Context, productID int64, valueIDs []int64) ([]Adjustment, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates attribute catalog operations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache *cache.Cache
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, c *cache.Cache) *Service {
	return &Service{repo: repo, audit: audit, cache: c}
}

// CreateType registers a new attribute type. Duplicate technical names are
// rejected with ErrDuplicate.
func (s *Service) CreateType(ctx context.Context, at AttributeType) (AttributeType, error) {
	if at.Name == "" {
		return AttributeType{}, fmt.Errorf("%w: attribute name is required", shared.ErrValidation)
	}
	if at.DisplayType == "" {
		at.DisplayType = DisplaySelect
	}
	if !at.DisplayType.Valid() {
		return AttributeType{}, fmt.Errorf("%w: unknown display type %q", shared.ErrValidation, at.DisplayType)
	}
	if at.DisplayName == "" {
		at.DisplayName = at.Name
	}
	created, err := s.repo.InsertType(ctx, at)
	if err != nil {
		return AttributeType{}, err
	}
	s.recordAudit(ctx, "attributes:type_create", "attribute_type", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

func (s *Service) UpdateType(ctx context.Context, at AttributeType) error {
	if at.ID <= 0 {
		return fmt.Errorf("%w: invalid attribute type id", shared.ErrValidation)
	}
	if at.Name == "" {
		return fmt.Errorf("%w: attribute name is required", shared.ErrValidation)
	}
	if !at.DisplayType.Valid() {
		return fmt.Errorf("%w: unknown display type %q", shared.ErrValidation, at.DisplayType)
	}
	if err := s.repo.UpdateType(ctx, at); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

func (s *Service) GetType(ctx context.Context, id int64) (AttributeType, error) {
	return s.repo.GetType(ctx, id)
}

func (s *Service) ListTypes(ctx context.Context) ([]AttributeType, error) {
	return s.repo.ListTypes(ctx)
}

// DeleteType removes the type and cascades to values, bindings, overrides
// and rules.
func (s *Service) DeleteType(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTypeCascade(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "attributes:type_delete", "attribute_type", id, nil)
	return s.invalidate(ctx)
}

func (s *Service) CreateValue(ctx context.Context, av AttributeValue) (AttributeValue, error) {
	if av.AttributeTypeID <= 0 {
		return AttributeValue{}, fmt.Errorf("%w: attribute type id is required", shared.ErrValidation)
	}
	if av.Value == "" {
		return AttributeValue{}, fmt.Errorf("%w: value is required", shared.ErrValidation)
	}
	if av.DisplayValue == "" {
		av.DisplayValue = av.Value
	}
	// FK violation on a missing type surfaces as ErrNotFound from the repo.
	created, err := s.repo.InsertValue(ctx, av)
	if err != nil {
		return AttributeValue{}, err
	}
	if err := s.invalidate(ctx); err != nil {
		return created, err
	}
	return created, nil
}

func (s *Service) UpdateValue(ctx context.Context, av AttributeValue) error {
	if av.ID <= 0 {
		return fmt.Errorf("%w: invalid attribute value id", shared.ErrValidation)
	}
	if av.Value == "" {
		return fmt.Errorf("%w: value is required", shared.ErrValidation)
	}
	if err := s.repo.UpdateValue(ctx, av); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

func (s *Service) ListValues(ctx context.Context, typeID int64) ([]AttributeValue, error) {
	if _, err := s.repo.GetType(ctx, typeID); err != nil {
		return nil, err
	}
	return s.repo.ListValues(ctx, typeID)
}

func (s *Service) DeleteValue(ctx context.Context, id int64) error {
	if err := s.repo.DeleteValueCascade(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// Bind associates an attribute type with a product. Binding an already-bound
// type returns the existing binding rather than erroring.
func (s *Service) Bind(ctx context.Context, b Binding) (Binding, error) {
	if b.ProductID <= 0 || b.AttributeTypeID <= 0 {
		return Binding{}, fmt.Errorf("%w: product and attribute type required", shared.ErrValidation)
	}
	existing, err := s.repo.GetBinding(ctx, b.ProductID, b.AttributeTypeID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Binding{}, err
	}
	created, err := s.repo.InsertBinding(ctx, b)
	if err != nil {
		// Lost a race against a concurrent bind; the existing row wins.
		if errors.Is(err, shared.ErrDuplicate) {
			return s.repo.GetBinding(ctx, b.ProductID, b.AttributeTypeID)
		}
		return Binding{}, err
	}
	if err := s.invalidate(ctx); err != nil {
		return created, err
	}
	return created, nil
}

func (s *Service) Unbind(ctx context.Context, bindingID int64) error {
	if err := s.repo.DeleteBindingCascade(ctx, bindingID); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

func (s *Service) ListBindings(ctx context.Context, productID int64) ([]Binding, error) {
	return s.repo.ListBindings(ctx, productID)
}

// SetOverride stores a per-product price adjustment for one attribute value.
// The value must belong to the binding's attribute type.
func (s *Service) SetOverride(ctx context.Context, o ValueOverride) (ValueOverride, error) {
	if o.BindingID <= 0 || o.AttributeValueID <= 0 {
		return ValueOverride{}, fmt.Errorf("%w: binding and value required", shared.ErrValidation)
	}
	if o.AdjustmentType == "" {
		o.AdjustmentType = AdjustmentFixed
	}
	if !o.AdjustmentType.Valid() {
		return ValueOverride{}, fmt.Errorf("%w: unknown adjustment type %q", shared.ErrValidation, o.AdjustmentType)
	}
	value, err := s.repo.GetValue(ctx, o.AttributeValueID)
	if err != nil {
		return ValueOverride{}, err
	}
	binding, err := s.repo.GetBindingByID(ctx, o.BindingID)
	if err != nil {
		return ValueOverride{}, err
	}
	if value.AttributeTypeID != binding.AttributeTypeID {
		return ValueOverride{}, fmt.Errorf("%w: %v", shared.ErrValidation, ErrValueForeignType)
	}
	saved, err := s.repo.UpsertOverride(ctx, o)
	if err != nil {
		return ValueOverride{}, err
	}
	if err := s.invalidate(ctx); err != nil {
		return saved, err
	}
	return saved, nil
}

// ProductAttributeSet returns all bound attributes with value options for a
// product, served from cache when available.
func (s *Service) ProductAttributeSet(ctx context.Context, productID int64) ([]BoundAttribute, error) {
	if productID <= 0 {
		return nil, fmt.Errorf("%w: invalid product id", shared.ErrValidation)
	}
	key, err := s.cache.BuildKey(ctx, "attributes", "product", strconv.FormatInt(productID, 10))
	if err != nil {
		return s.repo.ProductAttributeSet(ctx, productID)
	}
	var result []BoundAttribute
	err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (any, error) {
		return s.repo.ProductAttributeSet(ctx, productID)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EffectiveAdjustments resolves the price adjustments for a value selection.
func (s *Service) EffectiveAdjustments(ctx context.Context, productID int64, valueIDs []int64) ([]Adjustment, error) {
	return s.repo.EffectiveAdjustments(ctx, productID, valueIDs)
}

func (s *Service) invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) recordAudit(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
