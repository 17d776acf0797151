package money

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatRupiah(t *testing.T) {
	cases := map[int64]string{
		0:       "Rp 0",
		500:     "Rp 500",
		1000:    "Rp 1.000",
		15000:   "Rp 15.000",
		1234567: "Rp 1.234.567",
		-5000:   "-Rp 5.000",
	}
	for in, want := range cases {
		if got := FormatRupiah(in); got != want {
			t.Errorf("FormatRupiah(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestSumDoesNotOverflow(t *testing.T) {
	total := Sum(math.MaxInt64, math.MaxInt64, 2)
	want := decimal.NewFromInt(math.MaxInt64).Mul(decimal.NewFromInt(2)).Add(decimal.NewFromInt(2))
	if !total.Equal(want) {
		t.Fatalf("Sum = %s, want %s", total, want)
	}
	if got := FormatDecimal(decimal.RequireFromString("1999.6")); got != "Rp 2.000" {
		t.Fatalf("FormatDecimal = %q", got)
	}
}
