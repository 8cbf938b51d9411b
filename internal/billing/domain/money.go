package billing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatPeso renders an amount as Philippine peso currency with two decimal
// places and thousands separators, e.g. "₱1,234.56".
func FormatPeso(amount decimal.Decimal) string {
	fixed := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteString("₱")
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}
