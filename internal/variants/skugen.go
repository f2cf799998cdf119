package variants

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const fragmentLen = 3

// MakeSKU derives a human readable SKU from the product code and the display
// values of the selection. The suffix carries a base36 millisecond stamp plus
// random uuid characters, so combinations whose value fragments coincide
// ("Navy Blue" / "Navy Green") still stamp distinct SKUs within one run.
func MakeSKU(productCode string, displayValues []string) string {
	parts := make([]string, 0, len(displayValues)+2)
	parts = append(parts, sanitizeFragment(productCode, 8))
	for _, v := range displayValues {
		parts = append(parts, sanitizeFragment(v, fragmentLen))
	}
	stamp := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	entropy := strings.ToUpper(uuid.NewString()[:4])
	parts = append(parts, stamp+entropy)
	return strings.Join(parts, "-")
}

// MakeBarcode produces a numeric barcode from the current time and a random
// uuid suffix.
func MakeBarcode() string {
	id := uuid.New()
	var digits strings.Builder
	for _, b := range id[:] {
		digits.WriteString(strconv.Itoa(int(b) % 10))
		if digits.Len() >= 6 {
			break
		}
	}
	return fmt.Sprintf("2%012d%s", time.Now().Unix()%1e12, digits.String()[:6])
}

func sanitizeFragment(s string, max int) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
		if b.Len() >= max {
			break
		}
	}
	if b.Len() == 0 {
		return "X"
	}
	return b.String()
}
