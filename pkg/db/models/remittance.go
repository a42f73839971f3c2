package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// Remittance is the partner's payment of the platform percentage for one purchase.
type Remittance struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PurchaseID        uuid.UUID              `gorm:"column:purchase_id;type:uuid;not null"`
	PartnerID         uuid.UUID              `gorm:"column:partner_id;type:uuid;not null"`
	Value             decimal.Decimal        `gorm:"column:value;type:numeric(14,2);not null"`
	Status            enums.RemittanceStatus `gorm:"column:status;type:remittance_status;not null;default:'pending'"`
	ProofRef          *string                `gorm:"column:proof_ref"`
	Provider          *enums.PaymentProvider `gorm:"column:provider;type:payment_provider"`
	ExternalPaymentID *string                `gorm:"column:external_payment_id;uniqueIndex"`
	PaymentDeadline   *time.Time             `gorm:"column:payment_deadline"`
	SpenderShare      int64                  `gorm:"column:spender_share;not null;default:0"`
	FundShare         decimal.Decimal        `gorm:"column:fund_share;type:numeric(14,2);not null;default:0"`
	PlatformShare     decimal.Decimal        `gorm:"column:platform_share;type:numeric(14,2);not null;default:0"`
	ConfirmedBy       *uuid.UUID             `gorm:"column:confirmed_by;type:uuid"`
	ConfirmedAt       *time.Time             `gorm:"column:confirmed_at"`
	RejectedAt        *time.Time             `gorm:"column:rejected_at"`
	RejectReason      *string                `gorm:"column:reject_reason"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
