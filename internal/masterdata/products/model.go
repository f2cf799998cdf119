package products

import (
	"time"
)

// Product represents a sellable catalog entry. Price is the base unit price
// variant adjustments are applied against.
type Product struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CategoryID  int64     `json:"category_id"`
	Barcode     string    `json:"barcode"`
	Price       float64   `json:"price"`
	Cost        float64   `json:"cost"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
