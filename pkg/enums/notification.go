package enums

import "fmt"

// NotificationKind maps to the notification_kind enum in Postgres.
type NotificationKind string

const (
	NotificationPurchaseDecided  NotificationKind = "purchase_request_decided"
	NotificationCashbackReleased NotificationKind = "cashback_released"
	NotificationRemittanceDenied NotificationKind = "remittance_rejected"
	NotificationFundDistribution NotificationKind = "fund_distribution"
	NotificationCycleReset       NotificationKind = "cycle_reset"
	NotificationDonationReceived NotificationKind = "donation_received"
)

var validNotificationKinds = []NotificationKind{
	NotificationPurchaseDecided,
	NotificationCashbackReleased,
	NotificationRemittanceDenied,
	NotificationFundDistribution,
	NotificationCycleReset,
	NotificationDonationReceived,
}

// IsValid checks whether the given kind matches the canonical enum.
func (n NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw strings into NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
