// Package pricing holds the pluggable per-sub-order discount and shipping
// hooks used by checkout.
package pricing

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
	"github.com/angelmondragon/marketcore/pkg/money"
)

// MaxPromoCodeLength bounds accepted promo codes.
const MaxPromoCodeLength = 32

// PromoPolicy computes the discount for one sub-order. Implementations must
// return zero for an empty or unknown code.
type PromoPolicy interface {
	Discount(code string, subtotal decimal.Decimal) decimal.Decimal
}

// CodeTablePromo grants a percentage of the subtotal for exact-match codes.
type CodeTablePromo struct {
	percents map[string]decimal.Decimal
}

func NewCodeTablePromo(percents map[string]decimal.Decimal) *CodeTablePromo {
	table := make(map[string]decimal.Decimal, len(percents))
	for code, pct := range percents {
		table[code] = pct
	}
	return &CodeTablePromo{percents: table}
}

// DefaultPromo is the table used when nothing is configured.
func DefaultPromo() *CodeTablePromo {
	return NewCodeTablePromo(map[string]decimal.Decimal{"WELCOME10": decimal.NewFromInt(10)})
}

func (p *CodeTablePromo) Discount(code string, subtotal decimal.Decimal) decimal.Decimal {
	if p == nil || code == "" {
		return decimal.Zero
	}
	pct, ok := p.percents[code]
	if !ok {
		return decimal.Zero
	}
	discount := money.Percent(subtotal, pct)
	if discount.GreaterThan(subtotal) {
		return money.Round2(subtotal)
	}
	return discount
}

// NoPromo never discounts.
type NoPromo struct{}

func (NoPromo) Discount(string, decimal.Decimal) decimal.Decimal { return decimal.Zero }

// ValidateCode rejects malformed codes before checkout mutates anything. An
// empty code is valid and means "no promo".
func ValidateCode(code string) error {
	if code == "" {
		return nil
	}
	if len(code) > MaxPromoCodeLength {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "promo code longer than %d characters", MaxPromoCodeLength)
	}
	if strings.IndexFunc(code, func(r rune) bool {
		return unicode.IsSpace(r) || !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_')
	}) >= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo code contains invalid characters").
			WithDetails(map[string]any{"promo_code": code})
	}
	return nil
}
