package helpers

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketcore/pkg/errors"
	"github.com/angelmondragon/marketcore/pkg/money"
)

// ResolveCurrency falls back to def when raw is blank and validates the code.
func ResolveCurrency(raw string, def enums.Currency) (enums.Currency, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = def.String()
	}
	currency, err := enums.ParseCurrency(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
	}
	return currency, nil
}

// ClampDiscount keeps a promo result within [0, subtotal], rounded.
func ClampDiscount(discount, subtotal decimal.Decimal) decimal.Decimal {
	discount = money.Round2(discount)
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		return subtotal
	}
	return discount
}

// ClampFee keeps a shipping fee non-negative, rounded.
func ClampFee(fee decimal.Decimal) decimal.Decimal {
	fee = money.Round2(fee)
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee
}
