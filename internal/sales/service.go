package sales

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridianpos/meridian/internal/inventory"
	"github.com/meridianpos/meridian/internal/masterdata/products"
	"github.com/meridianpos/meridian/internal/shared"
	"github.com/meridianpos/meridian/internal/variants"
)

// RepositoryPort abstracts sale persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, limit, offset int) ([]Sale, error)
}

// VariantPort resolves sold variants.
type VariantPort interface {
	Get(ctx context.Context, id int64) (variants.Variant, error)
}

// ProductPort resolves products sold without a variant.
type ProductPort interface {
	Get(ctx context.Context, id int64) (products.Product, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards against replayed commits.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service processes sales.
type Service struct {
	repo          RepositoryPort
	variants      VariantPort
	products      ProductPort
	audit         AuditPort
	idempotency   IdempotencyPort
	allowNegative bool
}

// NewService builds Service. allowNegative mirrors the inventory policy for
// the sale decrement.
func NewService(repo RepositoryPort, variantPort VariantPort, productPort ProductPort, audit AuditPort, idempotency IdempotencyPort, allowNegative bool) *Service {
	return &Service{
		repo:          repo,
		variants:      variantPort,
		products:      productPort,
		audit:         audit,
		idempotency:   idempotency,
		allowNegative: allowNegative,
	}
}

// Commit prices the lines, verifies payment cover and persists the sale,
// its items, its payments and the stock decrements in one transaction.
func (s *Service) Commit(ctx context.Context, in CommitInput, idempotencyKey string) (Sale, error) {
	if len(in.Lines) == 0 {
		return Sale{}, fmt.Errorf("%w: a sale needs at least one line", shared.ErrValidation)
	}
	if len(in.Payments) == 0 {
		return Sale{}, fmt.Errorf("%w: a sale needs at least one payment", shared.ErrValidation)
	}
	for _, p := range in.Payments {
		if !p.Method.Valid() {
			return Sale{}, fmt.Errorf("%w: unknown payment method %q", shared.ErrValidation, p.Method)
		}
		if p.Amount <= 0 {
			return Sale{}, fmt.Errorf("%w: payment amounts must be positive", shared.ErrValidation)
		}
	}

	items, total, err := s.priceLines(ctx, in.Lines)
	if err != nil {
		return Sale{}, err
	}

	var paid float64
	for _, p := range in.Payments {
		paid += p.Amount
	}
	if paid < total {
		return Sale{}, fmt.Errorf("%w: total %.2f, paid %.2f", ErrInsufficientPayment, total, paid)
	}

	if idempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, idempotencyKey, "sales"); err != nil {
			return Sale{}, err
		}
	}

	actorID := in.ActorID
	if actorID == 0 {
		actorID = shared.ActorFromContext(ctx)
	}

	var sale Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var txErr error
		sale, txErr = tx.InsertSale(ctx, Sale{
			Number:  makeSaleNumber(),
			Total:   total,
			Paid:    paid,
			Change:  paid - total,
			Note:    in.Note,
			ActorID: actorID,
		})
		if txErr != nil {
			return txErr
		}
		for i := range items {
			items[i].SaleID = sale.ID
			items[i], txErr = tx.InsertItem(ctx, items[i])
			if txErr != nil {
				return txErr
			}
			stockVariant := items[i].VariantID
			if stockVariant == 0 {
				// Variantless products carry their stock on an implicit
				// bare variant, created on first sale.
				stockVariant, txErr = tx.BareVariant(ctx, items[i].ProductID, items[i].SKU, items[i].Name, items[i].UnitPrice)
				if txErr != nil {
					return txErr
				}
			}
			_, txErr = inventory.Apply(ctx, tx.Ledger(), inventory.AdjustInput{
				VariantID:     stockVariant,
				Type:          inventory.MovementSale,
				Delta:         -items[i].Quantity,
				ReferenceType: "sale",
				ReferenceID:   sale.ID,
				ActorID:       actorID,
			}, s.allowNegative)
			if txErr != nil {
				return txErr
			}
		}
		for _, p := range in.Payments {
			payment, txErr := tx.InsertPayment(ctx, SalePayment{
				SaleID:    sale.ID,
				Method:    p.Method,
				Amount:    p.Amount,
				Reference: p.Reference,
			})
			if txErr != nil {
				return txErr
			}
			sale.Payments = append(sale.Payments, payment)
		}
		sale.Items = items
		return nil
	})
	if err != nil {
		if idempotencyKey != "" && s.idempotency != nil {
			_ = s.idempotency.Delete(ctx, idempotencyKey)
		}
		return Sale{}, err
	}

	s.recordAudit(ctx, sale, actorID)
	return sale, nil
}

func (s *Service) priceLines(ctx context.Context, lines []LineInput) ([]SaleItem, float64, error) {
	items := make([]SaleItem, 0, len(lines))
	var total float64
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: line quantities must be positive", shared.ErrValidation)
		}
		var item SaleItem
		if line.VariantID > 0 {
			v, err := s.variants.Get(ctx, line.VariantID)
			if err != nil {
				return nil, 0, err
			}
			if !v.IsActive {
				return nil, 0, fmt.Errorf("%w: variant %d is not sellable", shared.ErrValidation, v.ID)
			}
			item = SaleItem{
				ProductID: v.ProductID,
				VariantID: v.ID,
				Name:      v.Name,
				SKU:       v.SKU,
				Quantity:  line.Quantity,
				UnitPrice: v.Price,
			}
		} else {
			p, err := s.products.Get(ctx, line.ProductID)
			if err != nil {
				return nil, 0, err
			}
			if !p.IsActive {
				return nil, 0, fmt.Errorf("%w: product %d is not sellable", shared.ErrValidation, p.ID)
			}
			item = SaleItem{
				ProductID: p.ID,
				Name:      p.Name,
				SKU:       p.Code,
				Quantity:  line.Quantity,
				UnitPrice: p.Price,
			}
		}
		item.LineTotal = item.UnitPrice * float64(item.Quantity)
		total += item.LineTotal
		items = append(items, item)
	}
	return items, total, nil
}

// Get returns one sale with its lines and payments.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	if id <= 0 {
		return Sale{}, fmt.Errorf("%w: invalid sale id", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns recent sales, newest first.
func (s *Service) List(ctx context.Context, page, perPage int) ([]Sale, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}
	return s.repo.List(ctx, perPage, (page-1)*perPage)
}

func makeSaleNumber() string {
	stamp := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return "S-" + stamp + "-" + suffix
}

func (s *Service) recordAudit(ctx context.Context, sale Sale, actorID int64) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "sales:commit",
		Entity:   "sale",
		EntityID: strconv.FormatInt(sale.ID, 10),
		Meta: map[string]any{
			"number": sale.Number,
			"total":  sale.Total,
			"items":  len(sale.Items),
		},
	})
}
