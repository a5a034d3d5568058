package enums

import (
	"fmt"
	"strings"
)

// Currency is an ISO 4217 alphabetic code. The core is currency-neutral, so
// any well-formed code is accepted.
type Currency string

const CurrencyUSD Currency = "USD"

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the code is three ASCII letters in upper case.
func (c Currency) IsValid() bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range string(c) {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// ParseCurrency normalizes and validates a raw currency code.
func ParseCurrency(value string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(value)))
	if !c.IsValid() {
		return "", fmt.Errorf("invalid currency %q", value)
	}
	return c, nil
}
