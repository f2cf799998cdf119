// Package rules implements the attribute compatibility engine: declarative
// constraints between attribute values and the validation of selections
// against them.
package rules

import "time"

// Kind enumerates the supported rule types.
type Kind string

const (
	// KindCompatibility allow-lists a value pair. Once a value appears in
	// any compatibility rule against another attribute type, only its
	// explicitly allowed partners from that type may be combined with it.
	KindCompatibility Kind = "compatibility"
	// KindDependency requires the secondary value whenever the primary
	// value is selected. Directional.
	KindDependency Kind = "dependency"
	// KindExclusion forbids selecting both values together.
	KindExclusion Kind = "exclusion"
)

// Valid reports whether the kind is recognised.
func (k Kind) Valid() bool {
	return k == KindCompatibility || k == KindDependency || k == KindExclusion
}

// Rule is one declarative constraint between two attribute values, scoped to
// a single product.
type Rule struct {
	ID               int64     `json:"id"`
	ProductID        int64     `json:"product_id"`
	Kind             Kind      `json:"kind"`
	PrimaryTypeID    int64     `json:"primary_type_id"`
	PrimaryValueID   int64     `json:"primary_value_id"`
	SecondaryTypeID  int64     `json:"secondary_type_id"`
	SecondaryValueID int64     `json:"secondary_value_id"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// Selection maps attribute type id to the selected value id.
type Selection map[int64]int64

// Violation describes one failed constraint.
type Violation struct {
	RuleID int64  `json:"rule_id,omitempty"`
	Kind   Kind   `json:"kind"`
	Reason string `json:"reason"`
}

// Result is the outcome of validating a selection.
type Result struct {
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}
