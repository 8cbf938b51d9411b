package billing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatPeso(t *testing.T) {
	cases := []struct {
		amount string
		want   string
	}{
		{"0", "₱0.00"},
		{"75", "₱75.00"},
		{"395", "₱395.00"},
		{"1234.5", "₱1,234.50"},
		{"1234567.89", "₱1,234,567.89"},
		{"-250.75", "-₱250.75"},
	}
	for _, tc := range cases {
		got := FormatPeso(decimal.RequireFromString(tc.amount))
		if got != tc.want {
			t.Fatalf("FormatPeso(%s) = %s, want %s", tc.amount, got, tc.want)
		}
	}
}
