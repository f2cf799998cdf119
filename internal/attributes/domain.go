// Package attributes manages the attribute catalog (axes of product
// variation and their values) and per-product attribute bindings with
// price-adjustment overrides.
package attributes

import (
	"errors"
	"time"
)

// DisplayType enumerates how an attribute is presented during selection.
type DisplayType string

const (
	DisplaySelect DisplayType = "select"
	DisplayRadio  DisplayType = "radio"
	DisplayColor  DisplayType = "color"
	DisplayImage  DisplayType = "image"
	DisplayText   DisplayType = "text"
	DisplayNumber DisplayType = "number"
)

// Valid reports whether the display type is one of the allowed values.
func (d DisplayType) Valid() bool {
	switch d {
	case DisplaySelect, DisplayRadio, DisplayColor, DisplayImage, DisplayText, DisplayNumber:
		return true
	}
	return false
}

// AdjustmentType enumerates how a price adjustment is applied.
type AdjustmentType string

const (
	// AdjustmentFixed adds the stored amount to the base price.
	AdjustmentFixed AdjustmentType = "fixed"
	// AdjustmentPercentage adds base*amount/100 to the base price.
	AdjustmentPercentage AdjustmentType = "percentage"
)

// Valid reports whether the adjustment type is recognised.
func (a AdjustmentType) Valid() bool {
	return a == AdjustmentFixed || a == AdjustmentPercentage
}

// AttributeType is a named axis of variation, e.g. Color or Size.
type AttributeType struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	DisplayName string      `json:"display_name"`
	Description string      `json:"description"`
	DisplayType DisplayType `json:"display_type"`
	IsActive    bool        `json:"is_active"`
	SortOrder   int         `json:"sort_order"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// AttributeValue is one allowed value of an AttributeType, e.g. Red.
type AttributeValue struct {
	ID              int64     `json:"id"`
	AttributeTypeID int64     `json:"attribute_type_id"`
	Value           string    `json:"value"`
	DisplayValue    string    `json:"display_value"`
	Description     string    `json:"description"`
	HTMLColor       string    `json:"html_color"`
	ImagePath       string    `json:"image_path"`
	SortOrder       int       `json:"sort_order"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Binding associates an AttributeType with a specific product.
type Binding struct {
	ID               int64 `json:"id"`
	ProductID        int64 `json:"product_id"`
	AttributeTypeID  int64 `json:"attribute_type_id"`
	IsRequired       bool  `json:"is_required"`
	AffectsPrice     bool  `json:"affects_price"`
	AffectsInventory bool  `json:"affects_inventory"`
	SortOrder        int   `json:"sort_order"`
}

// ValueOverride is a per-product price adjustment for one attribute value.
type ValueOverride struct {
	ID               int64          `json:"id"`
	BindingID        int64          `json:"binding_id"`
	AttributeValueID int64          `json:"attribute_value_id"`
	PriceAdjustment  float64        `json:"price_adjustment"`
	AdjustmentType   AdjustmentType `json:"adjustment_type"`
	IsDefault        bool           `json:"is_default"`
	IsActive         bool           `json:"is_active"`
	SortOrder        int            `json:"sort_order"`
}

// ValueOption is an attribute value enriched with its effective price
// adjustment for one product (override when present, else zero).
type ValueOption struct {
	AttributeValue
	PriceAdjustment float64        `json:"price_adjustment"`
	AdjustmentType  AdjustmentType `json:"adjustment_type"`
	IsDefault       bool           `json:"is_default"`
}

// BoundAttribute groups one product binding with its display metadata and
// selectable values.
type BoundAttribute struct {
	Binding Binding       `json:"binding"`
	Type    AttributeType `json:"type"`
	Values  []ValueOption `json:"values"`
}

// Adjustment is the pricing-relevant projection of a value override.
type Adjustment struct {
	AttributeValueID int64          `json:"attribute_value_id"`
	Amount           float64        `json:"amount"`
	Kind             AdjustmentType `json:"kind"`
}

// ErrValueForeignType indicates an override referencing a value that does not
// belong to the bound attribute type.
var ErrValueForeignType = errors.New("attributes: value does not belong to bound attribute type")
