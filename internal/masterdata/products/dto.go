package products

// ProductForm carries create payloads.
type ProductForm struct {
	Code        string  `json:"code" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description"`
	CategoryID  int64   `json:"category_id"`
	Barcode     string  `json:"barcode"`
	Price       float64 `json:"price" validate:"gte=0"`
	Cost        float64 `json:"cost" validate:"gte=0"`
	IsActive    bool    `json:"is_active"`
}

// UpdateInput enumerates every mutable product field. Nil fields are left
// untouched; column names never come from caller-supplied keys.
type UpdateInput struct {
	Code        *string  `json:"code,omitempty"`
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	CategoryID  *int64   `json:"category_id,omitempty"`
	Barcode     *string  `json:"barcode,omitempty"`
	Price       *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	Cost        *float64 `json:"cost,omitempty" validate:"omitempty,gte=0"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u UpdateInput) Empty() bool {
	return u.Code == nil && u.Name == nil && u.Description == nil &&
		u.CategoryID == nil && u.Barcode == nil && u.Price == nil &&
		u.Cost == nil && u.IsActive == nil
}
