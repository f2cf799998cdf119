// Package inventory tracks per-variant stock levels backed by an append-only
// movement ledger.
package inventory

import (
	"errors"
	"time"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementPurchase   MovementType = "purchase"
	MovementSale       MovementType = "sale"
	MovementAdjustment MovementType = "adjustment"
	MovementTransfer   MovementType = "transfer"
	MovementReturn     MovementType = "return"
)

// Valid reports whether the movement type is recognised.
func (m MovementType) Valid() bool {
	switch m {
	case MovementPurchase, MovementSale, MovementAdjustment, MovementTransfer, MovementReturn:
		return true
	}
	return false
}

// Record is the current stock level of one variant.
type Record struct {
	ID            int64      `json:"id"`
	VariantID     int64      `json:"variant_id"`
	Quantity      int64      `json:"quantity"`
	Reserved      int64      `json:"reserved"`
	ReorderLevel  int64      `json:"reorder_level"`
	ReorderQty    int64      `json:"reorder_qty"`
	Location      string     `json:"location,omitempty"`
	LastCountedAt *time.Time `json:"last_counted_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Available is the quantity not held by reservations, floored at zero.
func (r Record) Available() int64 {
	if avail := r.Quantity - r.Reserved; avail > 0 {
		return avail
	}
	return 0
}

// NeedsReorder reports whether the quantity has fallen to the reorder level.
func (r Record) NeedsReorder() bool {
	return r.ReorderLevel > 0 && r.Quantity <= r.ReorderLevel
}

// Movement is one immutable ledger entry. Quantity carries the applied
// signed delta, after any clamping, so replaying movements reproduces the
// record's quantity.
type Movement struct {
	ID            int64        `json:"id"`
	VariantID     int64        `json:"variant_id"`
	Type          MovementType `json:"type"`
	Quantity      int64        `json:"quantity"`
	ReferenceType string       `json:"reference_type,omitempty"`
	ReferenceID   int64        `json:"reference_id,omitempty"`
	Note          string       `json:"note,omitempty"`
	ActorID       int64        `json:"actor_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// AdjustInput describes a requested stock change.
type AdjustInput struct {
	VariantID     int64
	Type          MovementType
	Delta         int64
	ReferenceType string
	ReferenceID   int64
	Note          string
	ActorID       int64
}

// ErrInsufficientStock signals a reservation exceeding the available
// quantity.
var ErrInsufficientStock = errors.New("inventory: insufficient available stock")
