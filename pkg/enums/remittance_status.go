package enums

import "fmt"

// RemittanceStatus maps to the remittance_status enum in Postgres.
type RemittanceStatus string

const (
	RemittanceStatusPending         RemittanceStatus = "pending"
	RemittanceStatusAwaitingPayment RemittanceStatus = "awaiting_payment"
	RemittanceStatusConfirmed       RemittanceStatus = "confirmed"
	RemittanceStatusRejected        RemittanceStatus = "rejected"
)

var validRemittanceStatuses = []RemittanceStatus{
	RemittanceStatusPending,
	RemittanceStatusAwaitingPayment,
	RemittanceStatusConfirmed,
	RemittanceStatusRejected,
}

// OpenRemittanceStatuses are the states a remittance can still be confirmed or rejected from.
var OpenRemittanceStatuses = []RemittanceStatus{
	RemittanceStatusPending,
	RemittanceStatusAwaitingPayment,
}

// IsValid reports whether the value matches the canonical enum.
func (s RemittanceStatus) IsValid() bool {
	for _, candidate := range validRemittanceStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the remittance has been settled either way.
func (s RemittanceStatus) IsTerminal() bool {
	return s == RemittanceStatusConfirmed || s == RemittanceStatusRejected
}

// ParseRemittanceStatus converts raw input into RemittanceStatus.
func ParseRemittanceStatus(value string) (RemittanceStatus, error) {
	for _, candidate := range validRemittanceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid remittance status %q", value)
}
