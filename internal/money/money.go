// Package money provides the decimal arithmetic shared by the pricing,
// voucher, order and reward engines. All customer-facing amounts are
// rounded to two decimal places, half up.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Zero is the canonical zero amount.
var Zero = decimal.Zero

// Cent is the smallest representable amount.
var Cent = decimal.New(1, -2)

// RoundCents rounds an amount to two decimal places, half up.
// decimal.Round rounds half away from zero, which is identical for the
// non-negative amounts produced by the engines.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns round2(base * pct / 100).
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return RoundCents(base.Mul(pct).Div(decimal.NewFromInt(100)))
}

// Min returns the smaller of two amounts.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of two amounts.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Clamp returns the amount floored at zero.
func Clamp(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// EqualCents reports whether two amounts agree within one cent. Used to
// verify the total == subtotal - discount + tax + shipping invariant.
func EqualCents(a, b decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(Cent)
}

// MustParse converts a literal like "10.00" into a Decimal and panics on
// malformed input. Intended for configuration defaults and tests.
func MustParse(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(fmt.Sprintf("money: parse %q: %v", value, err))
	}
	return d
}

// Format renders an amount with exactly two decimal places for customer
// facing messages ("100.00").
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
