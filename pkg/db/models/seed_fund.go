package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// SeedFund accumulates fund shares over one cycle window.
type SeedFund struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CycleNumber   int             `gorm:"column:cycle_number;not null"`
	WindowStart   time.Time       `gorm:"column:window_start;not null"`
	WindowEnd     time.Time       `gorm:"column:window_end;not null"`
	Total         decimal.Decimal `gorm:"column:total;type:numeric(14,2);not null;default:0"`
	Distributed   bool            `gorm:"column:distributed;not null;default:false"`
	DistributedAt *time.Time      `gorm:"column:distributed_at"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// IsClosed reports whether the window has ended at now.
func (f SeedFund) IsClosed(now time.Time) bool {
	return !now.Before(f.WindowEnd)
}

// FundDistribution is one beneficiary's share of a distributed fund.
type FundDistribution struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FundID          uuid.UUID             `gorm:"column:fund_id;type:uuid;not null"`
	BeneficiaryID   uuid.UUID             `gorm:"column:beneficiary_id;type:uuid;not null"`
	BeneficiaryType enums.BeneficiaryType `gorm:"column:beneficiary_type;type:beneficiary_type;not null"`
	Value           int64                 `gorm:"column:value;not null"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}
