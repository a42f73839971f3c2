package models

import (
	"time"

	"github.com/google/uuid"
)

// CreatorContent is a post published by a creator.
type CreatorContent struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	Title     string    `gorm:"column:title;not null"`
	Removed   bool      `gorm:"column:removed;not null;default:false"`
	Reactions int64     `gorm:"column:reactions;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CreatorContent) TableName() string { return "creator_contents" }

// PartnerContent is a post published by a partner owner and attributed to a creator user.
type PartnerContent struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	PartnerID uuid.UUID `gorm:"column:partner_id;type:uuid;not null"`
	OwnerID   uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	Title     string    `gorm:"column:title;not null"`
	Removed   bool      `gorm:"column:removed;not null;default:false"`
	Reactions int64     `gorm:"column:reactions;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PartnerContent) TableName() string { return "partner_contents" }
