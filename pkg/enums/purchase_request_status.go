package enums

import "fmt"

// PurchaseRequestStatus maps to the purchase_request_status enum in Postgres.
type PurchaseRequestStatus string

const (
	PurchaseRequestStatusPending  PurchaseRequestStatus = "pending"
	PurchaseRequestStatusApproved PurchaseRequestStatus = "approved"
	PurchaseRequestStatusRejected PurchaseRequestStatus = "rejected"
)

var validPurchaseRequestStatuses = []PurchaseRequestStatus{
	PurchaseRequestStatusPending,
	PurchaseRequestStatusApproved,
	PurchaseRequestStatusRejected,
}

// IsValid reports whether the value matches the canonical enum.
func (s PurchaseRequestStatus) IsValid() bool {
	for _, candidate := range validPurchaseRequestStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePurchaseRequestStatus converts raw input into PurchaseRequestStatus.
func ParsePurchaseRequestStatus(value string) (PurchaseRequestStatus, error) {
	for _, candidate := range validPurchaseRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase request status %q", value)
}
