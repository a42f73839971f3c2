package enums

import (
	"fmt"
	"strings"
)

// PaymentProvider identifies who issued an external payment reference.
type PaymentProvider string

const (
	PaymentProviderSquare PaymentProvider = "square"
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderManual PaymentProvider = "manual"
)

// IsValid reports whether the value matches the canonical enum.
func (p PaymentProvider) IsValid() bool {
	switch p {
	case PaymentProviderSquare, PaymentProviderStripe, PaymentProviderManual:
		return true
	}
	return false
}

// ParsePaymentProvider converts raw config input into PaymentProvider.
func ParsePaymentProvider(value string) (PaymentProvider, error) {
	p := PaymentProvider(strings.ToLower(strings.TrimSpace(value)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment provider %q", value)
	}
	return p, nil
}
