package enums

import (
	"fmt"
	"strings"
)

// PaymentProvider names the party that settled (or will settle) a payment.
type PaymentProvider string

const (
	PaymentProviderCOD    PaymentProvider = "cod"
	PaymentProviderCard   PaymentProvider = "card"
	PaymentProviderWallet PaymentProvider = "wallet"
	PaymentProviderBank   PaymentProvider = "bank_transfer"
)

var validPaymentProviders = []PaymentProvider{
	PaymentProviderCOD,
	PaymentProviderCard,
	PaymentProviderWallet,
	PaymentProviderBank,
}

// String implements fmt.Stringer.
func (p PaymentProvider) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentProvider.
func (p PaymentProvider) IsValid() bool {
	for _, candidate := range validPaymentProviders {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentProvider converts raw input (case-insensitive) into a PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validPaymentProviders {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment provider %q", value)
}
