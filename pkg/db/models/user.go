package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/seedfund-backend/pkg/enums"
)

// User is a platform member holding a seed balance.
type User struct {
	ID          uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email       string             `gorm:"type:text;not null;uniqueIndex"`
	DisplayName string             `gorm:"column:display_name;not null"`
	SeedBalance int64              `gorm:"column:seed_balance;not null;default:0"`
	Score       int64              `gorm:"column:score;not null;default:0"`
	CreatorTier *enums.CreatorTier `gorm:"column:creator_tier;type:creator_tier"`
	Suspended   bool               `gorm:"column:suspended;not null;default:false"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// IsCreator reports whether the user has been granted a creator tier.
func (u User) IsCreator() bool {
	return u.CreatorTier != nil
}
