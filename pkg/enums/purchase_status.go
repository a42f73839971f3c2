package enums

import "fmt"

// PurchaseStatus maps to the purchase_status enum in Postgres.
type PurchaseStatus string

const (
	PurchaseStatusAwaitingRemittance   PurchaseStatus = "awaiting_remittance"
	PurchaseStatusRemittanceRegistered PurchaseStatus = "remittance_registered"
	PurchaseStatusAwaitingPayment      PurchaseStatus = "awaiting_payment"
	PurchaseStatusCashbackReleased     PurchaseStatus = "cashback_released"
	PurchaseStatusRejected             PurchaseStatus = "rejected"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusAwaitingRemittance,
	PurchaseStatusRemittanceRegistered,
	PurchaseStatusAwaitingPayment,
	PurchaseStatusCashbackReleased,
	PurchaseStatusRejected,
}

// IsValid reports whether the value matches the canonical enum.
func (s PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusCashbackReleased || s == PurchaseStatusRejected
}

// ParsePurchaseStatus converts raw input into PurchaseStatus.
func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}
