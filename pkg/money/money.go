// Package money holds the fixed-precision helpers used wherever totals are
// computed. Every stored or compared amount passes through Round2.
package money

import (
	"github.com/shopspring/decimal"
)

// Places is the precision of every persisted monetary amount.
const Places int32 = 2

// Round2 rounds half away from zero to two decimal places.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(Places)
}

// Sum adds the values and rounds the result. Callers pass amounts that are
// already rounded, so the result is deliberately double-rounded.
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return Round2(total)
}

// LineTotal returns the unrounded price x qty product.
func LineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

// PayTotal is the amount due for an order: items - discount + shipping.
func PayTotal(itemsTotal, discountTotal, shippingTotal decimal.Decimal) decimal.Decimal {
	return Round2(itemsTotal.Sub(discountTotal).Add(shippingTotal))
}

// Percent returns Round2(base x pct / 100).
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(decimal.NewFromInt(100)))
}

// FromFloat converts a float literal at the boundary (config, fixtures).
func FromFloat(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// MustParse parses a decimal string and panics on malformed input.
func MustParse(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
