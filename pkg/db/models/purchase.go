package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// Purchase is an approved purchase request tracked through remittance and cashback.
type Purchase struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RequestID     uuid.UUID            `gorm:"column:request_id;type:uuid;not null;uniqueIndex"`
	BuyerID       uuid.UUID            `gorm:"column:buyer_id;type:uuid;not null"`
	PartnerID     uuid.UUID            `gorm:"column:partner_id;type:uuid;not null"`
	Amount        decimal.Decimal      `gorm:"column:amount;type:numeric(14,2);not null"`
	Status        enums.PurchaseStatus `gorm:"column:status;type:purchase_status;not null;default:'awaiting_remittance'"`
	CashbackSeeds int64                `gorm:"column:cashback_seeds;not null;default:0"`
	ReleasedAt    *time.Time           `gorm:"column:released_at"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
