package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// SeedHistoryEntry is the append-only record written alongside every balance change.
type SeedHistoryEntry struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Type         enums.SeedHistoryType `gorm:"column:type;type:seed_history_type;not null"`
	Amount       int64                 `gorm:"column:amount;not null"`
	BalanceAfter int64                 `gorm:"column:balance_after;not null"`
	Reason       string                `gorm:"column:reason;not null"`
	ReferenceID  *uuid.UUID            `gorm:"column:reference_id;type:uuid"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (SeedHistoryEntry) TableName() string { return "seed_history" }
