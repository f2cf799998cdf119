package rules

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianpos/meridian/internal/shared"
)

// Repository persists attribute rules in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, rule Rule) (Rule, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `INSERT INTO attribute_rules (product_id, rule_type, primary_attribute_id, primary_value_id, secondary_attribute_id, secondary_value_id, is_active, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		rule.ProductID, string(rule.Kind), rule.PrimaryTypeID, rule.PrimaryValueID, rule.SecondaryTypeID, rule.SecondaryValueID, rule.IsActive, now).Scan(&rule.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return Rule{}, shared.ErrDuplicate
			case "23503":
				return Rule{}, shared.ErrNotFound
			}
		}
		return Rule{}, err
	}
	rule.CreatedAt = now
	return rule, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (Rule, error) {
	var rule Rule
	err := r.pool.QueryRow(ctx, `SELECT id, product_id, rule_type, primary_attribute_id, primary_value_id, secondary_attribute_id, secondary_value_id, is_active, created_at
FROM attribute_rules WHERE id=$1`, id).
		Scan(&rule.ID, &rule.ProductID, &rule.Kind, &rule.PrimaryTypeID, &rule.PrimaryValueID, &rule.SecondaryTypeID, &rule.SecondaryValueID, &rule.IsActive, &rule.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rule{}, shared.ErrNotFound
		}
		return Rule{}, err
	}
	return rule, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM attribute_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE attribute_rules SET is_active=$1 WHERE id=$2`, active, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListByProduct returns the product's rules whose referenced values still
// exist. Rules left dangling by value deletions are filtered out rather than
// surfaced as errors.
func (r *Repository) ListByProduct(ctx context.Context, productID int64) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT ar.id, ar.product_id, ar.rule_type, ar.primary_attribute_id, ar.primary_value_id, ar.secondary_attribute_id, ar.secondary_value_id, ar.is_active, ar.created_at
FROM attribute_rules ar
WHERE ar.product_id = $1
  AND EXISTS (SELECT 1 FROM attribute_values av WHERE av.id = ar.primary_value_id)
  AND EXISTS (SELECT 1 FROM attribute_values av WHERE av.id = ar.secondary_value_id)
ORDER BY ar.id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Rule
	for rows.Next() {
		var rule Rule
		if err := rows.Scan(&rule.ID, &rule.ProductID, &rule.Kind, &rule.PrimaryTypeID, &rule.PrimaryValueID, &rule.SecondaryTypeID, &rule.SecondaryValueID, &rule.IsActive, &rule.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rule)
	}
	return list, rows.Err()
}
