package variants

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianpos/meridian/internal/inventory"
	"github.com/meridianpos/meridian/internal/platform/db"
	"github.com/meridianpos/meridian/internal/shared"
)

// TxRepository is the transactional surface used by variant generation. The
// Ledger method exposes the stock ledger bound to the same transaction, so
// freshly generated variants get their zero quantity records atomically.
type TxRepository interface {
	InsertVariant(ctx context.Context, v Variant) (Variant, error)
	InsertVariantValue(ctx context.Context, variantID, valueID int64) error
	DeactivateProductVariants(ctx context.Context, productID int64) (int64, error)
	Ledger() inventory.TxRepository
}

// Repository persists variants in PostgreSQL.
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

func (t *txRepository) InsertVariant(ctx context.Context, v Variant) (Variant, error) {
	now := time.Now()
	err := t.tx.QueryRow(ctx, `INSERT INTO product_variants (product_id, sku, barcode, name, description, image_path, base_price, price, cost, weight, dimensions, is_active, is_default, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14) RETURNING id`,
		v.ProductID, v.SKU, v.Barcode, v.Name, v.Description, v.ImagePath, v.BasePrice, v.Price, v.Cost, v.Weight, v.Dimensions, v.IsActive, v.IsDefault, now).Scan(&v.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Variant{}, shared.ErrDuplicate
		}
		return Variant{}, err
	}
	v.CreatedAt = now
	v.UpdatedAt = now
	return v, nil
}

func (t *txRepository) InsertVariantValue(ctx context.Context, variantID, valueID int64) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO product_variant_values (variant_id, attribute_value_id) VALUES ($1,$2)`, variantID, valueID)
	return err
}

func (t *txRepository) DeactivateProductVariants(ctx context.Context, productID int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE product_variants SET is_active=FALSE, updated_at=NOW() WHERE product_id=$1 AND is_active`, productID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) Ledger() inventory.TxRepository {
	return inventory.NewTxLedger(t.tx)
}

const variantColumns = `id, product_id, sku, barcode, name, description, image_path, base_price, price, cost, weight, dimensions, is_active, is_default, created_at, updated_at`

// Get loads one variant with its value ids.
func (r *Repository) Get(ctx context.Context, id int64) (Variant, error) {
	var v Variant
	err := r.pool.QueryRow(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id=$1`, id).
		Scan(&v.ID, &v.ProductID, &v.SKU, &v.Barcode, &v.Name, &v.Description, &v.ImagePath, &v.BasePrice, &v.Price, &v.Cost, &v.Weight, &v.Dimensions, &v.IsActive, &v.IsDefault, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Variant{}, shared.ErrNotFound
		}
		return Variant{}, err
	}
	if v.ValueIDs, err = r.valueIDs(ctx, v.ID); err != nil {
		return Variant{}, err
	}
	return v, nil
}

func (r *Repository) valueIDs(ctx context.Context, variantID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT attribute_value_id FROM product_variant_values WHERE variant_id=$1 ORDER BY attribute_value_id ASC`, variantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByProduct returns the product's variants, optionally only active ones.
func (r *Repository) ListByProduct(ctx context.Context, productID int64, activeOnly bool) ([]Variant, error) {
	query := `SELECT ` + variantColumns + ` FROM product_variants WHERE product_id=$1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Variant
	for rows.Next() {
		var v Variant
		if err := rows.Scan(&v.ID, &v.ProductID, &v.SKU, &v.Barcode, &v.Name, &v.Description, &v.ImagePath, &v.BasePrice, &v.Price, &v.Cost, &v.Weight, &v.Dimensions, &v.IsActive, &v.IsDefault, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ValueIDs, err = r.valueIDs(ctx, list[i].ID); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// FindByValues locates the active variant matching the value set exactly.
func (r *Repository) FindByValues(ctx context.Context, productID int64, valueIDs []int64) (Variant, error) {
	if len(valueIDs) == 0 {
		return Variant{}, shared.ErrNotFound
	}
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT v.id FROM product_variants v
WHERE v.product_id = $1 AND v.is_active
  AND (SELECT COUNT(*) FROM product_variant_values vv WHERE vv.variant_id = v.id) = $3
  AND (SELECT COUNT(*) FROM product_variant_values vv WHERE vv.variant_id = v.id AND vv.attribute_value_id = ANY($2)) = $3
LIMIT 1`, productID, valueIDs, len(valueIDs)).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Variant{}, shared.ErrNotFound
		}
		return Variant{}, err
	}
	return r.Get(ctx, id)
}

// SetActive toggles one variant.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE product_variants SET is_active=$1, updated_at=NOW() WHERE id=$2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// SetDefault marks one variant as the product's default, clearing any prior
// default in the same transaction.
func (r *Repository) SetDefault(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var productID int64
		err := tx.QueryRow(ctx, `SELECT product_id FROM product_variants WHERE id=$1`, id).Scan(&productID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE product_variants SET is_default=FALSE, updated_at=NOW() WHERE product_id=$1 AND is_default`, productID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE product_variants SET is_default=TRUE, updated_at=NOW() WHERE id=$1`, id)
		return err
	})
}

// UpdatePrice overrides the stored price of one variant.
func (r *Repository) UpdatePrice(ctx context.Context, id int64, price float64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE product_variants SET price=$1, updated_at=NOW() WHERE id=$2`, price, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
