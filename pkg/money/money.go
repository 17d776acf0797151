// Package money formats whole-rupiah amounts for display. Balances stay int64
// everywhere else.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatRupiah renders an amount as "Rp 1.234.567" (dot thousands separator,
// no fraction). Negative values get a leading minus: "-Rp 5.000".
func FormatRupiah(amount int64) string {
	return formatDecimal(decimal.NewFromInt(amount))
}

// FormatDecimal renders an arbitrary-size total, rounded to whole rupiah.
func FormatDecimal(amount decimal.Decimal) string {
	return formatDecimal(amount.Round(0))
}

// Sum adds amounts without overflowing int64.
func Sum(amounts ...int64) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromInt(a))
	}
	return total
}

func formatDecimal(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}
	digits := d.StringFixed(0)

	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3 + 4)
	b.WriteString(sign)
	b.WriteString("Rp ")
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
