package variants

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMakeSKUDistinguishesSharedFragments(t *testing.T) {
	// Both value sets truncate to the same NAV-SMA fragments; the SKUs must
	// still differ even when stamped within the same millisecond.
	a := MakeSKU("TSHIRT", []string{"Navy Blue", "Small"})
	b := MakeSKU("TSHIRT", []string{"Navy Green", "Small"})

	require.True(t, strings.HasPrefix(a, "TSHIRT-NAV-SMA-"))
	require.True(t, strings.HasPrefix(b, "TSHIRT-NAV-SMA-"))
	require.NotEqual(t, a, b)
}

func TestMakeSKUSanitizesValues(t *testing.T) {
	sku := MakeSKU("té-shirt", []string{"½ Size", "  "})
	require.True(t, strings.HasPrefix(sku, "TSHIRT-SIZ-X-"), sku)
}
