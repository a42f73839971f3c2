package models

import (
	"time"

	"github.com/google/uuid"
)

// Donation moves seeds from a supporter to a creator within a cycle.
type Donation struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DonorID     uuid.UUID `gorm:"column:donor_id;type:uuid;not null"`
	CreatorID   uuid.UUID `gorm:"column:creator_id;type:uuid;not null"`
	Amount      int64     `gorm:"column:amount;not null"`
	CycleNumber int       `gorm:"column:cycle_number;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
