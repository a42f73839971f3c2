package models

import (
	"time"

	"github.com/google/uuid"
)

// CycleConfigID is the fixed primary key of the singleton cycle_configs row.
const CycleConfigID = 1

// CycleConfig holds the single cycle/season clock and the reference to the open fund.
type CycleConfig struct {
	ID            int        `gorm:"column:id;primaryKey"`
	CycleStart    time.Time  `gorm:"column:cycle_start;not null"`
	SeasonStart   time.Time  `gorm:"column:season_start;not null"`
	CycleNumber   int        `gorm:"column:cycle_number;not null;default:1"`
	SeasonNumber  int        `gorm:"column:season_number;not null;default:1"`
	Paused        bool       `gorm:"column:paused;not null;default:false"`
	CurrentFundID *uuid.UUID `gorm:"column:current_fund_id;type:uuid"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
