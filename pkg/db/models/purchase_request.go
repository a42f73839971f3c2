package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// PurchaseRequest is a buyer's declaration of a purchase awaiting partner review.
type PurchaseRequest struct {
	ID           uuid.UUID                   `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID      uuid.UUID                   `gorm:"column:buyer_id;type:uuid;not null"`
	PartnerID    uuid.UUID                   `gorm:"column:partner_id;type:uuid;not null"`
	Amount       decimal.Decimal             `gorm:"column:amount;type:numeric(14,2);not null"`
	Status       enums.PurchaseRequestStatus `gorm:"column:status;type:purchase_request_status;not null;default:'pending'"`
	DecidedBy    *uuid.UUID                  `gorm:"column:decided_by;type:uuid"`
	DecidedAt    *time.Time                  `gorm:"column:decided_at"`
	RejectReason *string                     `gorm:"column:reject_reason"`
	PurchaseID   *uuid.UUID                  `gorm:"column:purchase_id;type:uuid"`
	CreatedAt    time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}
