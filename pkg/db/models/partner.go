package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Partner is a merchant that owes remittances to the platform.
type Partner struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID       `gorm:"column:owner_user_id;type:uuid;not null"`
	Name        string          `gorm:"column:name;not null"`
	DebtBalance decimal.Decimal `gorm:"column:debt_balance;type:numeric(14,2);not null;default:0"`
	SalesCount  int64           `gorm:"column:sales_count;not null;default:0"`
	SalesTotal  decimal.Decimal `gorm:"column:sales_total;type:numeric(14,2);not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
