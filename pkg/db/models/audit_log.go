package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog records an administrative or settlement action.
type AuditLog struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActorID   *uuid.UUID      `gorm:"column:actor_id;type:uuid"`
	Action    string          `gorm:"column:action;not null"`
	Details   json.RawMessage `gorm:"column:details;type:jsonb"`
	IP        *string         `gorm:"column:ip"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
