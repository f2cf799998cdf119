// Package sales processes point of sale transactions: line pricing, payment
// capture and the atomic stock decrement for sold variants.
package sales

import (
	"errors"
	"time"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentOther    PaymentMethod = "other"
)

// Valid reports whether the payment method is recognised.
func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentOther:
		return true
	}
	return false
}

// Sale is one completed transaction.
type Sale struct {
	ID        int64         `json:"id"`
	Number    string        `json:"number"`
	Total     float64       `json:"total"`
	Paid      float64       `json:"paid"`
	Change    float64       `json:"change"`
	Note      string        `json:"note,omitempty"`
	ActorID   int64         `json:"actor_id,omitempty"`
	Items     []SaleItem    `json:"items,omitempty"`
	Payments  []SalePayment `json:"payments,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// SaleItem is one sold line. VariantID is zero for products sold without an
// explicit variant; their stock lives on the product's implicit bare variant.
type SaleItem struct {
	ID        int64   `json:"id"`
	SaleID    int64   `json:"sale_id"`
	ProductID int64   `json:"product_id"`
	VariantID int64   `json:"variant_id,omitempty"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku,omitempty"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineTotal float64 `json:"line_total"`
}

// SalePayment is one tender applied to a sale.
type SalePayment struct {
	ID        int64         `json:"id"`
	SaleID    int64         `json:"sale_id"`
	Method    PaymentMethod `json:"method"`
	Amount    float64       `json:"amount"`
	Reference string        `json:"reference,omitempty"`
}

// LineInput is one requested sale line.
type LineInput struct {
	ProductID int64
	VariantID int64
	Quantity  int64
}

// PaymentInput is one tender offered for the sale.
type PaymentInput struct {
	Method    PaymentMethod
	Amount    float64
	Reference string
}

// CommitInput describes one sale to process.
type CommitInput struct {
	Lines    []LineInput
	Payments []PaymentInput
	Note     string
	ActorID  int64
}

// ErrInsufficientPayment signals tenders that do not cover the sale total.
var ErrInsufficientPayment = errors.New("sales: payments do not cover the total")

// ErrVariantRequired signals a variantless line for a product that has
// explicit variants.
var ErrVariantRequired = errors.New("sales: product is sold through its variants")
