package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the fixed precision for every stored and compared amount.
const MoneyPlaces int32 = 2

// Add, Subtract and Multiply keep full precision; rounding happens at
// persistence and comparison boundaries only.
func Add(a, b decimal.Decimal) decimal.Decimal {
	return a.Add(b)
}

func Subtract(a, b decimal.Decimal) decimal.Decimal {
	return a.Sub(b)
}

func Multiply(a, b decimal.Decimal) decimal.Decimal {
	return a.Mul(b)
}

func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Round2 rounds half away from zero to two places.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// OrZero is the single place a missing amount becomes zero.
func OrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// Format renders amount with thousands separators and a fixed number of decimals.
// A nil amount renders as zero.
func Format(amount *decimal.Decimal, decimals int32) string {
	if decimals < 0 {
		decimals = 0
	}
	s := OrZero(amount).StringFixed(decimals)

	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i:]
	}

	var b strings.Builder
	if negative && strings.Trim(intPart+fracPart, "0.") != "" {
		b.WriteByte('-')
	}
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	b.WriteString(fracPart)
	return b.String()
}
