package enums

// PaymentStatus is the provider-neutral status of an external payment.
type PaymentStatus string

const (
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusRejected PaymentStatus = "rejected"
)

// IsValid reports whether the value matches the canonical enum.
func (p PaymentStatus) IsValid() bool {
	switch p {
	case PaymentStatusApproved, PaymentStatusPending, PaymentStatusRejected:
		return true
	}
	return false
}
