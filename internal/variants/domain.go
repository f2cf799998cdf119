// Package variants generates and prices concrete sellable combinations of a
// product's attribute values.
package variants

import (
	"errors"
	"time"
)

// Variant is one sellable combination of attribute values. BasePrice is the
// product price snapshot taken at generation; Price is the computed final
// price after adjustments.
type Variant struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id"`
	SKU         string    `json:"sku"`
	Barcode     string    `json:"barcode"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImagePath   string    `json:"image_path,omitempty"`
	BasePrice   float64   `json:"base_price"`
	Price       float64   `json:"price"`
	Cost        float64   `json:"cost"`
	Weight      float64   `json:"weight"`
	Dimensions  string    `json:"dimensions"`
	IsActive    bool      `json:"is_active"`
	IsDefault   bool      `json:"is_default"`
	ValueIDs    []int64   `json:"value_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// GenerationMode controls how Generate treats existing variants.
type GenerationMode string

const (
	// RegenerateAll deactivates existing variants and rebuilds the full set.
	RegenerateAll GenerationMode = "regenerate_all"
	// AddMissing keeps existing variants and only creates combinations that
	// do not exist yet.
	AddMissing GenerationMode = "add_missing"
)

// Valid reports whether the mode is recognised.
func (m GenerationMode) Valid() bool {
	return m == RegenerateAll || m == AddMissing
}

// GenerateInput parameterises variant generation.
type GenerateInput struct {
	ProductID       int64
	Mode            GenerationMode
	InitialQuantity int64
	ActorID         int64
}

// GenerateResult summarises one generation run.
type GenerateResult struct {
	Created  []Variant `json:"created"`
	Skipped  int       `json:"skipped"`
	Retired  int       `json:"retired"`
	Rejected int       `json:"rejected"`
}

// Quote is the computed price for one prospective selection.
type Quote struct {
	ProductID int64   `json:"product_id"`
	BasePrice float64 `json:"base_price"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
	ValueIDs  []int64 `json:"value_ids"`
}

// ErrNoAttributes signals generation on a product with no bound attributes.
var ErrNoAttributes = errors.New("variants: product has no attribute bindings")

// ErrTooManyCombinations signals a generation run exceeding the configured
// combination cap.
var ErrTooManyCombinations = errors.New("variants: combination count exceeds the configured limit")
