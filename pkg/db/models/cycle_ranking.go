package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CycleRanking is a leaderboard position captured during a cycle.
type CycleRanking struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CycleNumber int       `gorm:"column:cycle_number;not null"`
	UserID      uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	Position    int       `gorm:"column:position;not null"`
	Score       int64     `gorm:"column:score;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// CycleArchive stores one batch of rows cleared by a cycle or season reset.
type CycleArchive struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CycleNumber  int             `gorm:"column:cycle_number;not null"`
	SeasonNumber int             `gorm:"column:season_number;not null"`
	SourceTable  string          `gorm:"column:source_table;not null"`
	RowCount     int             `gorm:"column:row_count;not null"`
	Payload      json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}
