package attributes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianpos/meridian/internal/shared"
)

// Repository persists the attribute catalog in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const typeColumns = `id, name, display_name, description, display_type, is_active, sort_order, created_at, updated_at`
const valueColumns = `id, attribute_type_id, value, display_value, description, html_color, image_path, sort_order, is_active, created_at, updated_at`

func (r *Repository) InsertType(ctx context.Context, at AttributeType) (AttributeType, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO attribute_types (name, display_name, description, display_type, is_active, sort_order, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7) RETURNING id`,
		at.Name, at.DisplayName, at.Description, string(at.DisplayType), at.IsActive, at.SortOrder, now).Scan(&at.ID)
	if err != nil {
		return AttributeType{}, mapPgError(err)
	}
	at.CreatedAt = now
	at.UpdatedAt = now
	return at, nil
}

func (r *Repository) UpdateType(ctx context.Context, at AttributeType) error {
	tag, err := r.pool.Exec(ctx, `UPDATE attribute_types SET name=$1, display_name=$2, description=$3, display_type=$4, is_active=$5, sort_order=$6, updated_at=NOW() WHERE id=$7`,
		at.Name, at.DisplayName, at.Description, string(at.DisplayType), at.IsActive, at.SortOrder, at.ID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) GetType(ctx context.Context, id int64) (AttributeType, error) {
	var at AttributeType
	err := r.pool.QueryRow(ctx, `SELECT `+typeColumns+` FROM attribute_types WHERE id=$1`, id).
		Scan(&at.ID, &at.Name, &at.DisplayName, &at.Description, &at.DisplayType, &at.IsActive, &at.SortOrder, &at.CreatedAt, &at.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AttributeType{}, shared.ErrNotFound
		}
		return AttributeType{}, err
	}
	return at, nil
}

func (r *Repository) ListTypes(ctx context.Context) ([]AttributeType, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+typeColumns+` FROM attribute_types ORDER BY sort_order ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []AttributeType
	for rows.Next() {
		var at AttributeType
		if err := rows.Scan(&at.ID, &at.Name, &at.DisplayName, &at.Description, &at.DisplayType, &at.IsActive, &at.SortOrder, &at.CreatedAt, &at.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, at)
	}
	return list, rows.Err()
}

// DeleteTypeCascade removes the type together with its values, bindings,
// overrides and rules in one transaction. Variants built on the deleted
// values are retired and unlinked: their combination no longer exists, but
// sale history keeps its references.
func (r *Repository) DeleteTypeCascade(ctx context.Context, typeID int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM attribute_rules WHERE primary_attribute_id=$1 OR secondary_attribute_id=$1`, typeID); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `UPDATE product_variants SET is_active=FALSE, updated_at=NOW()
WHERE id IN (SELECT vv.variant_id FROM product_variant_values vv
	JOIN attribute_values av ON av.id = vv.attribute_value_id
	WHERE av.attribute_type_id=$1)`, typeID); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM product_variant_values WHERE attribute_value_id IN (SELECT id FROM attribute_values WHERE attribute_type_id=$1)`, typeID); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM product_attribute_values WHERE product_attribute_id IN (SELECT id FROM product_attributes WHERE attribute_type_id=$1)`, typeID); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM product_attributes WHERE attribute_type_id=$1`, typeID); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM attribute_values WHERE attribute_type_id=$1`, typeID); err != nil {
		return mapPgError(err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM attribute_types WHERE id=$1`, typeID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *Repository) InsertValue(ctx context.Context, av AttributeValue) (AttributeValue, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO attribute_values (attribute_type_id, value, display_value, description, html_color, image_path, sort_order, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9) RETURNING id`,
		av.AttributeTypeID, av.Value, av.DisplayValue, av.Description, av.HTMLColor, av.ImagePath, av.SortOrder, av.IsActive, now).Scan(&av.ID)
	if err != nil {
		return AttributeValue{}, mapPgError(err)
	}
	av.CreatedAt = now
	av.UpdatedAt = now
	return av, nil
}

func (r *Repository) UpdateValue(ctx context.Context, av AttributeValue) error {
	tag, err := r.pool.Exec(ctx, `UPDATE attribute_values SET value=$1, display_value=$2, description=$3, html_color=$4, image_path=$5, sort_order=$6, is_active=$7, updated_at=NOW() WHERE id=$8`,
		av.Value, av.DisplayValue, av.Description, av.HTMLColor, av.ImagePath, av.SortOrder, av.IsActive, av.ID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteValueCascade removes the value together with its overrides and rules,
// retiring and unlinking any variant built on it.
func (r *Repository) DeleteValueCascade(ctx context.Context, valueID int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM attribute_rules WHERE primary_value_id=$1 OR secondary_value_id=$1`, valueID); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `UPDATE product_variants SET is_active=FALSE, updated_at=NOW()
WHERE id IN (SELECT variant_id FROM product_variant_values WHERE attribute_value_id=$1)`, valueID); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM product_variant_values WHERE attribute_value_id=$1`, valueID); err != nil {
		return mapPgError(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM product_attribute_values WHERE attribute_value_id=$1`, valueID); err != nil {
		return mapPgError(err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM attribute_values WHERE id=$1`, valueID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *Repository) GetValue(ctx context.Context, id int64) (AttributeValue, error) {
	var av AttributeValue
	err := r.pool.QueryRow(ctx, `SELECT `+valueColumns+` FROM attribute_values WHERE id=$1`, id).
		Scan(&av.ID, &av.AttributeTypeID, &av.Value, &av.DisplayValue, &av.Description, &av.HTMLColor, &av.ImagePath, &av.SortOrder, &av.IsActive, &av.CreatedAt, &av.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AttributeValue{}, shared.ErrNotFound
		}
		return AttributeValue{}, err
	}
	return av, nil
}

func (r *Repository) ListValues(ctx context.Context, typeID int64) ([]AttributeValue, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+valueColumns+` FROM attribute_values WHERE attribute_type_id=$1 ORDER BY sort_order ASC, value ASC`, typeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []AttributeValue
	for rows.Next() {
		var av AttributeValue
		if err := rows.Scan(&av.ID, &av.AttributeTypeID, &av.Value, &av.DisplayValue, &av.Description, &av.HTMLColor, &av.ImagePath, &av.SortOrder, &av.IsActive, &av.CreatedAt, &av.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, av)
	}
	return list, rows.Err()
}

func (r *Repository) GetBinding(ctx context.Context, productID, typeID int64) (Binding, error) {
	var b Binding
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, attribute_type_id, is_required, affects_price, affects_inventory, sort_order
FROM product_attributes WHERE product_id=$1 AND attribute_type_id=$2`, productID, typeID).
		Scan(&b.ID, &b.ProductID, &b.AttributeTypeID, &b.IsRequired, &b.AffectsPrice, &b.AffectsInventory, &b.SortOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Binding{}, shared.ErrNotFound
		}
		return Binding{}, err
	}
	return b, nil
}

func (r *Repository) GetBindingByID(ctx context.Context, bindingID int64) (Binding, error) {
	var b Binding
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, attribute_type_id, is_required, affects_price, affects_inventory, sort_order
FROM product_attributes WHERE id=$1`, bindingID).
		Scan(&b.ID, &b.ProductID, &b.AttributeTypeID, &b.IsRequired, &b.AffectsPrice, &b.AffectsInventory, &b.SortOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Binding{}, shared.ErrNotFound
		}
		return Binding{}, err
	}
	return b, nil
}

func (r *Repository) InsertBinding(ctx context.Context, b Binding) (Binding, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO product_attributes (product_id, attribute_type_id, is_required, affects_price, affects_inventory, sort_order)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`,
		b.ProductID, b.AttributeTypeID, b.IsRequired, b.AffectsPrice, b.AffectsInventory, b.SortOrder).Scan(&b.ID)
	if err != nil {
		return Binding{}, mapPgError(err)
	}
	return b, nil
}

func (r *Repository) DeleteBindingCascade(ctx context.Context, bindingID int64) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM product_attribute_values WHERE product_attribute_id=$1`, bindingID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM product_attributes WHERE id=$1`, bindingID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *Repository) ListBindings(ctx context.Context, productID int64) ([]Binding, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, product_id, attribute_type_id, is_required, affects_price, affects_inventory, sort_order
FROM product_attributes WHERE product_id=$1 ORDER BY sort_order ASC, id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Binding
	for rows.Next() {
		var b Binding
		if err := rows.Scan(&b.ID, &b.ProductID, &b.AttributeTypeID, &b.IsRequired, &b.AffectsPrice, &b.AffectsInventory, &b.SortOrder); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

func (r *Repository) UpsertOverride(ctx context.Context, o ValueOverride) (ValueOverride, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO product_attribute_values (product_attribute_id, attribute_value_id, price_adjustment, price_adjustment_type, is_default, is_active, sort_order)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (product_attribute_id, attribute_value_id)
DO UPDATE SET price_adjustment=EXCLUDED.price_adjustment, price_adjustment_type=EXCLUDED.price_adjustment_type, is_default=EXCLUDED.is_default, is_active=EXCLUDED.is_active, sort_order=EXCLUDED.sort_order
RETURNING id`,
		o.BindingID, o.AttributeValueID, o.PriceAdjustment, string(o.AdjustmentType), o.IsDefault, o.IsActive, o.SortOrder).Scan(&o.ID)
	if err != nil {
		return ValueOverride{}, mapPgError(err)
	}
	return o, nil
}

// ProductAttributeSet returns every bound attribute for a product with its
// display metadata and value options carrying effective adjustments.
func (r *Repository) ProductAttributeSet(ctx context.Context, productID int64) ([]BoundAttribute, error) {
	rows, err := r.pool.Query(ctx, `SELECT pa.id, pa.product_id, pa.attribute_type_id, pa.is_required, pa.affects_price, pa.affects_inventory, pa.sort_order,
	at.id, at.name, at.display_name, at.description, at.display_type, at.is_active, at.sort_order, at.created_at, at.updated_at,
	av.id, av.attribute_type_id, av.value, av.display_value, av.description, av.html_color, av.image_path, av.sort_order, av.is_active, av.created_at, av.updated_at,
	COALESCE(pav.price_adjustment, 0), COALESCE(pav.price_adjustment_type, 'fixed'), COALESCE(pav.is_default, FALSE)
FROM product_attributes pa
JOIN attribute_types at ON at.id = pa.attribute_type_id
JOIN attribute_values av ON av.attribute_type_id = pa.attribute_type_id AND av.is_active
LEFT JOIN product_attribute_values pav ON pav.product_attribute_id = pa.id AND pav.attribute_value_id = av.id AND pav.is_active
WHERE pa.product_id = $1
ORDER BY pa.sort_order ASC, pa.id ASC, av.sort_order ASC, av.id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		result  []BoundAttribute
		current *BoundAttribute
	)
	for rows.Next() {
		var b Binding
		var at AttributeType
		var opt ValueOption
		if err := rows.Scan(
			&b.ID, &b.ProductID, &b.AttributeTypeID, &b.IsRequired, &b.AffectsPrice, &b.AffectsInventory, &b.SortOrder,
			&at.ID, &at.Name, &at.DisplayName, &at.Description, &at.DisplayType, &at.IsActive, &at.SortOrder, &at.CreatedAt, &at.UpdatedAt,
			&opt.ID, &opt.AttributeTypeID, &opt.Value, &opt.DisplayValue, &opt.Description, &opt.HTMLColor, &opt.ImagePath, &opt.SortOrder, &opt.IsActive, &opt.CreatedAt, &opt.UpdatedAt,
			&opt.PriceAdjustment, &opt.AdjustmentType, &opt.IsDefault,
		); err != nil {
			return nil, err
		}
		if current == nil || current.Binding.ID != b.ID {
			result = append(result, BoundAttribute{Binding: b, Type: at})
			current = &result[len(result)-1]
		}
		current.Values = append(current.Values, opt)
	}
	return result, rows.Err()
}

// EffectiveAdjustments returns the price adjustments applicable to the given
// selected values, counting only bindings with affects_price set.
func (r *Repository) EffectiveAdjustments(ctx context.Context, productID int64, valueIDs []int64) ([]Adjustment, error) {
	if len(valueIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT pav.attribute_value_id, pav.price_adjustment, pav.price_adjustment_type
FROM product_attribute_values pav
JOIN product_attributes pa ON pa.id = pav.product_attribute_id
WHERE pa.product_id = $1 AND pa.affects_price AND pav.is_active AND pav.attribute_value_id = ANY($2)`, productID, valueIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adjustments []Adjustment
	for rows.Next() {
		var adj Adjustment
		if err := rows.Scan(&adj.AttributeValueID, &adj.Amount, &adj.Kind); err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adj)
	}
	return adjustments, rows.Err()
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.ErrDuplicate
		case "23503":
			return shared.ErrNotFound
		}
		return fmt.Errorf("%w: sqlstate %s", shared.ErrPersistence, pgErr.Code)
	}
	return err
}
