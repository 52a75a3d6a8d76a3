package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormat(t *testing.T) {
	d := func(s string) *decimal.Decimal {
		v := decimal.RequireFromString(s)
		return &v
	}
	cases := []struct {
		in       *decimal.Decimal
		decimals int32
		expected string
	}{
		{nil, 2, "0.00"},
		{d("0"), 2, "0.00"},
		{d("1400"), 2, "1,400.00"},
		{d("1234567.891"), 2, "1,234,567.89"},
		{d("-27650"), 2, "-27,650.00"},
		{d("999"), 0, "999"},
		{d("100.005"), 2, "100.01"},
	}
	for _, tc := range cases {
		if got := Format(tc.in, tc.decimals); got != tc.expected {
			t.Fatalf("Format(%v, %d) expected %s, got %s", tc.in, tc.decimals, tc.expected, got)
		}
	}
}

func TestArithmeticKeepsPrecision(t *testing.T) {
	total := decimal.Zero
	cent := decimal.RequireFromString("0.01")
	for i := 0; i < 1000; i++ {
		total = Add(total, cent)
	}
	if !total.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10, got %s", total)
	}
	if got := Subtract(decimal.RequireFromString("0.3"), decimal.RequireFromString("0.1")); !got.Equal(decimal.RequireFromString("0.2")) {
		t.Fatalf("expected 0.2, got %s", got)
	}
	if got := Multiply(decimal.NewFromInt(500), decimal.NewFromInt(3)); !got.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("expected 1500, got %s", got)
	}
}

