package variants

import "github.com/meridianpos/meridian/internal/attributes"

// Price computes a variant price from the base price and the effective
// adjustments of the selected values. Fixed adjustments add their amount;
// percentage adjustments add base*amount/100. Every percentage applies to
// the unmodified base, so the result does not depend on adjustment order.
func Price(base float64, adjustments []attributes.Adjustment) float64 {
	price := base
	for _, adj := range adjustments {
		switch adj.Kind {
		case attributes.AdjustmentPercentage:
			price += base * adj.Amount / 100
		default:
			price += adj.Amount
		}
	}
	if price < 0 {
		price = 0
	}
	return price
}
