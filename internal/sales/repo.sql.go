package sales

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianpos/meridian/internal/inventory"
	"github.com/meridianpos/meridian/internal/platform/db"
	"github.com/meridianpos/meridian/internal/shared"
)

// TxRepository is the transactional surface of sale persistence. Ledger
// exposes the stock ledger bound to the same transaction so the decrement
// commits or rolls back together with the sale rows.
type TxRepository interface {
	InsertSale(ctx context.Context, s Sale) (Sale, error)
	InsertItem(ctx context.Context, item SaleItem) (SaleItem, error)
	InsertPayment(ctx context.Context, p SalePayment) (SalePayment, error)
	BareVariant(ctx context.Context, productID int64, code, name string, price float64) (int64, error)
	Ledger() inventory.TxRepository
}

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (t *txRepository) InsertSale(ctx context.Context, s Sale) (Sale, error) {
	now := time.Now()
	err := t.tx.QueryRow(ctx, `INSERT INTO sales (number, total, paid, change, note, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		s.Number, s.Total, s.Paid, s.Change, s.Note, s.ActorID, now).Scan(&s.ID)
	if err != nil {
		return Sale{}, err
	}
	s.CreatedAt = now
	return s, nil
}

func (t *txRepository) InsertItem(ctx context.Context, item SaleItem) (SaleItem, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO sale_items (sale_id, product_id, variant_id, name, sku, quantity, unit_price, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		item.SaleID, item.ProductID, nullVariant(item.VariantID), item.Name, item.SKU, item.Quantity, item.UnitPrice, item.LineTotal).Scan(&item.ID)
	if err != nil {
		return SaleItem{}, err
	}
	return item, nil
}

func (t *txRepository) InsertPayment(ctx context.Context, p SalePayment) (SalePayment, error) {
	err := t.tx.QueryRow(ctx, `INSERT INTO sale_payments (sale_id, method, amount, reference)
VALUES ($1,$2,$3,$4) RETURNING id`,
		p.SaleID, string(p.Method), p.Amount, p.Reference).Scan(&p.ID)
	if err != nil {
		return SalePayment{}, err
	}
	return p, nil
}

// BareVariant returns the variant that carries stock for a product sold
// without explicit variants, creating it with a zero inventory record on
// first sale. A bare variant has no value associations. Products that do
// have explicit variants must be sold through one of them.
func (t *txRepository) BareVariant(ctx context.Context, productID int64, code, name string, price float64) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `SELECT v.id FROM product_variants v
WHERE v.product_id=$1 AND NOT EXISTS (SELECT 1 FROM product_variant_values vv WHERE vv.variant_id = v.id)
LIMIT 1`, productID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var explicit int64
	if err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM product_variants WHERE product_id=$1`, productID).Scan(&explicit); err != nil {
		return 0, err
	}
	if explicit > 0 {
		return 0, ErrVariantRequired
	}

	now := time.Now()
	err = t.tx.QueryRow(ctx, `INSERT INTO product_variants (product_id, sku, name, base_price, price, is_active, is_default, created_at, updated_at)
VALUES ($1,$2,$3,$4,$4,TRUE,TRUE,$5,$5) RETURNING id`, productID, code, name, price, now).Scan(&id)
	if err != nil {
		return 0, err
	}
	if _, err := t.tx.Exec(ctx, `INSERT INTO variant_inventory (variant_id, updated_at) VALUES ($1,$2)`, id, now); err != nil {
		return 0, err
	}
	return id, nil
}

func (t *txRepository) Ledger() inventory.TxRepository {
	return inventory.NewTxLedger(t.tx)
}

// Get loads one sale with items and payments.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	var s Sale
	err := r.pool.QueryRow(ctx, `SELECT id, number, total, paid, change, COALESCE(note,''), COALESCE(actor_id,0), created_at FROM sales WHERE id=$1`, id).
		Scan(&s.ID, &s.Number, &s.Total, &s.Paid, &s.Change, &s.Note, &s.ActorID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, shared.ErrNotFound
		}
		return Sale{}, err
	}

	itemRows, err := r.pool.Query(ctx, `SELECT id, sale_id, product_id, COALESCE(variant_id,0), name, COALESCE(sku,''), quantity, unit_price, line_total
FROM sale_items WHERE sale_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Sale{}, err
	}
	defer itemRows.Close()
	for itemRows.Next() {
		var item SaleItem
		if err := itemRows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.VariantID, &item.Name, &item.SKU, &item.Quantity, &item.UnitPrice, &item.LineTotal); err != nil {
			return Sale{}, err
		}
		s.Items = append(s.Items, item)
	}
	if err := itemRows.Err(); err != nil {
		return Sale{}, err
	}

	payRows, err := r.pool.Query(ctx, `SELECT id, sale_id, method, amount, COALESCE(reference,'')
FROM sale_payments WHERE sale_id=$1 ORDER BY id ASC`, id)
	if err != nil {
		return Sale{}, err
	}
	defer payRows.Close()
	for payRows.Next() {
		var p SalePayment
		if err := payRows.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.Reference); err != nil {
			return Sale{}, err
		}
		s.Payments = append(s.Payments, p)
	}
	return s, payRows.Err()
}

// List returns recent sales without their line detail, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, number, total, paid, change, COALESCE(note,''), COALESCE(actor_id,0), created_at
FROM sales ORDER BY id DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.Number, &s.Total, &s.Paid, &s.Change, &s.Note, &s.ActorID, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}

func nullVariant(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
