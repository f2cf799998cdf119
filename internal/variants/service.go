package variants

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/meridianpos/meridian/internal/attributes"
	"github.com/meridianpos/meridian/internal/inventory"
	"github.com/meridianpos/meridian/internal/masterdata/products"
	"github.com/meridianpos/meridian/internal/rules"
	"github.com/meridianpos/meridian/internal/shared"
)

// RepositoryPort abstracts variant persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	Get(ctx context.Context, id int64) (Variant, error)
	ListByProduct(ctx context.Context, productID int64, activeOnly bool) ([]Variant, error)
	FindByValues(ctx context.Context, productID int64, valueIDs []int64) (Variant, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetDefault(ctx context.Context, id int64) error
	UpdatePrice(ctx context.Context, id int64, price float64) error
}

// AttributePort exposes the attribute catalog to the generator.
type AttributePort interface {
	ProductAttributeSet(ctx context.Context, productID int64) ([]attributes.BoundAttribute, error)
	EffectiveAdjustments(ctx context.Context, productID int64, valueIDs []int64) ([]attributes.Adjustment, error)
}

// RulePort exposes the rule engine to the generator.
type RulePort interface {
	ValidSelections(ctx context.Context, productID int64, axes []rules.Axis, limit int) ([]rules.Selection, error)
	Validate(ctx context.Context, productID int64, sel rules.Selection) (rules.Result, error)
}

// ProductPort exposes product master data to the generator.
type ProductPort interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service generates, prices and resolves product variants.
type Service struct {
	repo            RepositoryPort
	attrs           AttributePort
	rules           RulePort
	products        ProductPort
	audit           AuditPort
	maxCombinations int
	insertRetries   int
}

// NewService builds Service. maxCombinations caps one generation run;
// zero or negative means unlimited.
func NewService(repo RepositoryPort, attrs AttributePort, rulePort RulePort, productPort ProductPort, audit AuditPort, maxCombinations int) *Service {
	return &Service{
		repo:            repo,
		attrs:           attrs,
		rules:           rulePort,
		products:        productPort,
		audit:           audit,
		maxCombinations: maxCombinations,
		insertRetries:   3,
	}
}

// axisPlan is the per-product view the generator works from.
type axisPlan struct {
	axes     []rules.Axis
	display  map[int64]string
	typeOf   map[int64]int64
	required map[int64]bool
	// adjust holds each value's effective price adjustment, only for
	// bindings that affect price.
	adjust map[int64]attributes.Adjustment
}

func (s *Service) plan(ctx context.Context, productID int64) (*axisPlan, error) {
	set, err := s.attrs.ProductAttributeSet(ctx, productID)
	if err != nil {
		return nil, err
	}
	p := &axisPlan{
		display:  map[int64]string{},
		typeOf:   map[int64]int64{},
		required: map[int64]bool{},
		adjust:   map[int64]attributes.Adjustment{},
	}
	for _, bound := range set {
		if !bound.Type.IsActive || len(bound.Values) == 0 {
			continue
		}
		axis := rules.Axis{TypeID: bound.Type.ID}
		for _, opt := range bound.Values {
			axis.ValueIDs = append(axis.ValueIDs, opt.ID)
			p.display[opt.ID] = opt.DisplayValue
			p.typeOf[opt.ID] = bound.Type.ID
			if bound.Binding.AffectsPrice && opt.PriceAdjustment != 0 {
				p.adjust[opt.ID] = attributes.Adjustment{
					AttributeValueID: opt.ID,
					Amount:           opt.PriceAdjustment,
					Kind:             opt.AdjustmentType,
				}
			}
		}
		p.required[bound.Type.ID] = bound.Binding.IsRequired
		p.axes = append(p.axes, axis)
	}
	if len(p.axes) == 0 {
		return nil, ErrNoAttributes
	}
	return p, nil
}

// Generate builds variants for every rule-satisfying combination of the
// product's bound attribute values. RegenerateAll retires the existing set
// first; AddMissing only creates combinations without a live variant.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (GenerateResult, error) {
	if !in.Mode.Valid() {
		return GenerateResult{}, fmt.Errorf("%w: unknown generation mode %q", shared.ErrValidation, in.Mode)
	}
	product, err := s.products.Get(ctx, in.ProductID)
	if err != nil {
		return GenerateResult{}, err
	}
	p, err := s.plan(ctx, in.ProductID)
	if err != nil {
		return GenerateResult{}, err
	}

	limit := 0
	if s.maxCombinations > 0 {
		limit = s.maxCombinations + 1
	}
	selections, err := s.rules.ValidSelections(ctx, in.ProductID, p.axes, limit)
	if err != nil {
		return GenerateResult{}, err
	}
	if s.maxCombinations > 0 && len(selections) > s.maxCombinations {
		return GenerateResult{}, fmt.Errorf("%w: limit %d", ErrTooManyCombinations, s.maxCombinations)
	}

	grid := 1
	for _, axis := range p.axes {
		grid *= len(axis.ValueIDs)
	}

	existing := map[string]bool{}
	if in.Mode == AddMissing {
		live, err := s.repo.ListByProduct(ctx, in.ProductID, true)
		if err != nil {
			return GenerateResult{}, err
		}
		for _, v := range live {
			existing[valueSetKey(v.ValueIDs)] = true
		}
	}

	var result GenerateResult
	run := func() error {
		result = GenerateResult{Rejected: grid - len(selections)}
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if in.Mode == RegenerateAll {
				retired, err := tx.DeactivateProductVariants(ctx, in.ProductID)
				if err != nil {
					return err
				}
				result.Retired = int(retired)
			}
			for _, sel := range selections {
				valueIDs := s.orderedValues(p, sel)
				if in.Mode == AddMissing && existing[valueSetKey(valueIDs)] {
					result.Skipped++
					continue
				}
				v, err := s.insertVariant(ctx, tx, product, p, valueIDs, in.InitialQuantity)
				if err != nil {
					return err
				}
				result.Created = append(result.Created, v)
			}
			return nil
		})
	}

	err = run()
	for attempt := 0; errors.Is(err, shared.ErrDuplicate) && attempt < s.insertRetries; attempt++ {
		// A SKU stamp collided with a concurrent insert. Fresh stamps on
		// the rerun resolve it.
		err = run()
	}
	if err != nil {
		return GenerateResult{}, err
	}

	s.recordAudit(ctx, "variants:generate", in.ProductID, map[string]any{
		"mode":    string(in.Mode),
		"created": len(result.Created),
		"skipped": result.Skipped,
		"retired": result.Retired,
	})
	return result, nil
}

func (s *Service) insertVariant(ctx context.Context, tx TxRepository, product products.Product, p *axisPlan, valueIDs []int64, initialQty int64) (Variant, error) {
	displays := make([]string, 0, len(valueIDs))
	adjustments := make([]attributes.Adjustment, 0, len(valueIDs))
	for _, id := range valueIDs {
		displays = append(displays, p.display[id])
		if adj, ok := p.adjust[id]; ok {
			adjustments = append(adjustments, adj)
		}
	}

	v, err := tx.InsertVariant(ctx, Variant{
		ProductID: product.ID,
		SKU:       MakeSKU(product.Code, displays),
		Barcode:   MakeBarcode(),
		Name:      fmt.Sprintf("%s (%s)", product.Name, strings.Join(displays, " / ")),
		BasePrice: product.Price,
		Price:     Price(product.Price, adjustments),
		Cost:      product.Cost,
		IsActive:  true,
	})
	if err != nil {
		return Variant{}, err
	}
	for _, valueID := range valueIDs {
		if err := tx.InsertVariantValue(ctx, v.ID, valueID); err != nil {
			return Variant{}, err
		}
	}
	v.ValueIDs = valueIDs

	if _, err := tx.Ledger().InsertRecord(ctx, inventory.Record{VariantID: v.ID}); err != nil {
		return Variant{}, err
	}
	if initialQty > 0 {
		_, err := inventory.Apply(ctx, tx.Ledger(), inventory.AdjustInput{
			VariantID: v.ID,
			Type:      inventory.MovementAdjustment,
			Delta:     initialQty,
			Note:      "initial stock on generation",
		}, false)
		if err != nil {
			return Variant{}, err
		}
	}
	return v, nil
}

func (s *Service) orderedValues(p *axisPlan, sel rules.Selection) []int64 {
	valueIDs := make([]int64, 0, len(p.axes))
	for _, axis := range p.axes {
		if valueID, ok := sel[axis.TypeID]; ok {
			valueIDs = append(valueIDs, valueID)
		}
	}
	return valueIDs
}

// Quote prices a prospective selection without creating a variant.
func (s *Service) Quote(ctx context.Context, productID int64, valueIDs []int64) (Quote, error) {
	if len(valueIDs) == 0 {
		return Quote{}, fmt.Errorf("%w: at least one value is required", shared.ErrValidation)
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return Quote{}, err
	}
	p, err := s.plan(ctx, productID)
	if err != nil {
		return Quote{}, err
	}

	sel := rules.Selection{}
	displays := make([]string, 0, len(valueIDs))
	for _, id := range valueIDs {
		typeID, ok := p.typeOf[id]
		if !ok {
			return Quote{}, fmt.Errorf("%w: value %d is not available for this product", shared.ErrValidation, id)
		}
		if _, dup := sel[typeID]; dup {
			return Quote{}, fmt.Errorf("%w: two values selected for one attribute", shared.ErrValidation)
		}
		sel[typeID] = id
		displays = append(displays, p.display[id])
	}
	for typeID, required := range p.required {
		if required {
			if _, ok := sel[typeID]; !ok {
				return Quote{}, fmt.Errorf("%w: a required attribute is missing from the selection", shared.ErrValidation)
			}
		}
	}

	res, err := s.rules.Validate(ctx, productID, sel)
	if err != nil {
		return Quote{}, err
	}
	if !res.Valid {
		reasons := make([]string, 0, len(res.Violations))
		for _, v := range res.Violations {
			reasons = append(reasons, v.Reason)
		}
		return Quote{}, fmt.Errorf("%w: %s", shared.ErrValidation, strings.Join(reasons, "; "))
	}

	adjustments, err := s.attrs.EffectiveAdjustments(ctx, productID, valueIDs)
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		ProductID: productID,
		BasePrice: product.Price,
		Price:     Price(product.Price, adjustments),
		Name:      fmt.Sprintf("%s (%s)", product.Name, strings.Join(displays, " / ")),
		ValueIDs:  valueIDs,
	}, nil
}

// FindByValues resolves the active variant matching the value set exactly.
func (s *Service) FindByValues(ctx context.Context, productID int64, valueIDs []int64) (Variant, error) {
	if productID <= 0 || len(valueIDs) == 0 {
		return Variant{}, fmt.Errorf("%w: product and values are required", shared.ErrValidation)
	}
	return s.repo.FindByValues(ctx, productID, valueIDs)
}

// Get returns one variant.
func (s *Service) Get(ctx context.Context, id int64) (Variant, error) {
	if id <= 0 {
		return Variant{}, fmt.Errorf("%w: invalid variant id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// ListByProduct returns the product's variants.
func (s *Service) ListByProduct(ctx context.Context, productID int64, activeOnly bool) ([]Variant, error) {
	return s.repo.ListByProduct(ctx, productID, activeOnly)
}

// SetActive toggles a variant.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	s.recordAudit(ctx, "variants:set_active", id, map[string]any{"active": active})
	return nil
}

// SetDefault marks one variant as the product's default configuration.
func (s *Service) SetDefault(ctx context.Context, id int64) error {
	if err := s.repo.SetDefault(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, "variants:set_default", id, nil)
	return nil
}

// UpdatePrice overrides the stored price of a variant.
func (s *Service) UpdatePrice(ctx context.Context, id int64, price float64) error {
	if price < 0 {
		return fmt.Errorf("%w: price cannot be negative", shared.ErrValidation)
	}
	return s.repo.UpdatePrice(ctx, id, price)
}

func valueSetKey(valueIDs []int64) string {
	sorted := make([]int64, len(valueIDs))
	copy(sorted, valueIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func (s *Service) recordAudit(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "product_variant",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
