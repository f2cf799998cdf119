package variants

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridianpos/meridian/internal/attributes"
)

func TestPriceAddsFixedAdjustments(t *testing.T) {
	price := Price(100, []attributes.Adjustment{
		{Amount: 5, Kind: attributes.AdjustmentFixed},
		{Amount: 2.5, Kind: attributes.AdjustmentFixed},
	})
	require.InDelta(t, 107.5, price, 1e-9)
}

func TestPricePercentageAppliesToBase(t *testing.T) {
	price := Price(200, []attributes.Adjustment{
		{Amount: 10, Kind: attributes.AdjustmentPercentage},
		{Amount: 5, Kind: attributes.AdjustmentFixed},
	})
	require.InDelta(t, 225, price, 1e-9)
}

func TestPriceIsOrderIndependent(t *testing.T) {
	adjustments := []attributes.Adjustment{
		{Amount: 10, Kind: attributes.AdjustmentPercentage},
		{Amount: -3, Kind: attributes.AdjustmentFixed},
		{Amount: 25, Kind: attributes.AdjustmentPercentage},
	}
	forward := Price(80, adjustments)

	reversed := []attributes.Adjustment{adjustments[2], adjustments[1], adjustments[0]}
	require.InDelta(t, forward, Price(80, reversed), 1e-9,
		"percentages apply to the base, so ordering cannot matter")
}

func TestPriceFloorsAtZero(t *testing.T) {
	price := Price(10, []attributes.Adjustment{
		{Amount: -50, Kind: attributes.AdjustmentFixed},
	})
	require.Zero(t, price)
}

func TestPriceWithoutAdjustmentsIsBase(t *testing.T) {
	require.InDelta(t, 42.99, Price(42.99, nil), 1e-9)
}

func TestMakeSKUShapesFragments(t *testing.T) {
	sku := MakeSKU("TSHIRT-01", []string{"Deep Red", "Extra Large"})
	parts := strings.Split(sku, "-")
	require.GreaterOrEqual(t, len(parts), 4)
	require.Equal(t, "TSHIRT01", parts[0])
	require.Equal(t, "DEE", parts[1])
	require.Equal(t, "EXT", parts[2])
	require.Equal(t, strings.ToUpper(sku), sku)
}

func TestMakeBarcodeIsNumeric(t *testing.T) {
	barcode := MakeBarcode()
	require.Len(t, barcode, 19)
	for _, r := range barcode {
		require.True(t, r >= '0' && r <= '9')
	}
}
