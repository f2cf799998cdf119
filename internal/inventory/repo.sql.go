package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianpos/meridian/internal/platform/db"
	"github.com/meridianpos/meridian/internal/shared"
)

// TxRepository is the transactional surface of the stock ledger. Other
// packages obtain one from their own transaction via NewTxLedger so stock
// writes commit atomically with theirs.
type TxRepository interface {
	RecordForUpdate(ctx context.Context, variantID int64) (Record, error)
	InsertRecord(ctx context.Context, rec Record) (Record, error)
	SetQuantity(ctx context.Context, variantID, quantity int64) error
	SetReserved(ctx context.Context, variantID, reserved int64) error
	SetLastCounted(ctx context.Context, variantID int64, at time.Time) error
	InsertMovement(ctx context.Context, mv Movement) (Movement, error)
}

// Repository persists inventory state in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one transaction exposing the ledger surface.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxLedger(tx))
	})
}

// txLedger implements TxRepository over one pgx transaction.
type txLedger struct {
	tx pgx.Tx
}

// NewTxLedger wraps an open transaction with the ledger surface.
func NewTxLedger(tx pgx.Tx) TxRepository {
	return &txLedger{tx: tx}
}

// RecordForUpdate loads a record holding a row lock until commit.
func (l *txLedger) RecordForUpdate(ctx context.Context, variantID int64) (Record, error) {
	var rec Record
	err := l.tx.QueryRow(ctx, `SELECT id, variant_id, quantity, reserved, reorder_level, reorder_qty, location, last_counted_at, updated_at
FROM variant_inventory WHERE variant_id=$1 FOR UPDATE`, variantID).
		Scan(&rec.ID, &rec.VariantID, &rec.Quantity, &rec.Reserved, &rec.ReorderLevel, &rec.ReorderQty, &rec.Location, &rec.LastCountedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, shared.ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

func (l *txLedger) InsertRecord(ctx context.Context, rec Record) (Record, error) {
	now := time.Now()
	err := l.tx.QueryRow(ctx, `INSERT INTO variant_inventory (variant_id, quantity, reserved, reorder_level, reorder_qty, location, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		rec.VariantID, rec.Quantity, rec.Reserved, rec.ReorderLevel, rec.ReorderQty, rec.Location, now).Scan(&rec.ID)
	if err != nil {
		return Record{}, err
	}
	rec.UpdatedAt = now
	return rec, nil
}

func (l *txLedger) SetQuantity(ctx context.Context, variantID, quantity int64) error {
	tag, err := l.tx.Exec(ctx, `UPDATE variant_inventory SET quantity=$1, updated_at=NOW() WHERE variant_id=$2`, quantity, variantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (l *txLedger) SetReserved(ctx context.Context, variantID, reserved int64) error {
	tag, err := l.tx.Exec(ctx, `UPDATE variant_inventory SET reserved=$1, updated_at=NOW() WHERE variant_id=$2`, reserved, variantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (l *txLedger) SetLastCounted(ctx context.Context, variantID int64, at time.Time) error {
	tag, err := l.tx.Exec(ctx, `UPDATE variant_inventory SET last_counted_at=$1, updated_at=NOW() WHERE variant_id=$2`, at, variantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (l *txLedger) InsertMovement(ctx context.Context, mv Movement) (Movement, error) {
	now := time.Now()
	err := l.tx.QueryRow(ctx, `INSERT INTO inventory_movements (variant_id, movement_type, quantity, reference_type, reference_id, note, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		mv.VariantID, string(mv.Type), mv.Quantity, nullStr(mv.ReferenceType), nullInt(mv.ReferenceID), nullStr(mv.Note), nullInt(mv.ActorID), now).Scan(&mv.ID)
	if err != nil {
		return Movement{}, err
	}
	mv.CreatedAt = now
	return mv, nil
}

// Get returns the current stock record for one variant.
func (r *Repository) Get(ctx context.Context, variantID int64) (Record, error) {
	var rec Record
	err := r.pool.QueryRow(ctx, `SELECT id, variant_id, quantity, reserved, reorder_level, reorder_qty, location, last_counted_at, updated_at
FROM variant_inventory WHERE variant_id=$1`, variantID).
		Scan(&rec.ID, &rec.VariantID, &rec.Quantity, &rec.Reserved, &rec.ReorderLevel, &rec.ReorderQty, &rec.Location, &rec.LastCountedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, shared.ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// SetReorderPolicy updates the threshold and refill quantity used by the low
// stock scan, and the storage location label.
func (r *Repository) SetReorderPolicy(ctx context.Context, variantID, level, qty int64, location string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE variant_inventory SET reorder_level=$1, reorder_qty=$2, location=$3, updated_at=NOW() WHERE variant_id=$4`, level, qty, location, variantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListMovements returns ledger entries for a variant, newest first.
func (r *Repository) ListMovements(ctx context.Context, variantID int64, limit, offset int) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, variant_id, movement_type, quantity, COALESCE(reference_type,''), COALESCE(reference_id,0), COALESCE(note,''), COALESCE(actor_id,0), created_at
FROM inventory_movements WHERE variant_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`, variantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Movement
	for rows.Next() {
		var mv Movement
		if err := rows.Scan(&mv.ID, &mv.VariantID, &mv.Type, &mv.Quantity, &mv.ReferenceType, &mv.ReferenceID, &mv.Note, &mv.ActorID, &mv.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, mv)
	}
	return list, rows.Err()
}

// ListLowStock returns records at or below their reorder level.
func (r *Repository) ListLowStock(ctx context.Context) ([]Record, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, variant_id, quantity, reserved, reorder_level, reorder_qty, location, last_counted_at, updated_at
FROM variant_inventory WHERE reorder_level > 0 AND quantity <= reorder_level ORDER BY quantity ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.VariantID, &rec.Quantity, &rec.Reserved, &rec.ReorderLevel, &rec.ReorderQty, &rec.Location, &rec.LastCountedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
