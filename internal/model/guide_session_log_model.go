package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type GuideSessionLog struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId         uuid.UUID      `gorm:"type:uuid;not null;index"`
	ConversationId *uuid.UUID     `gorm:"type:uuid"`
	Entrypoint     string         `gorm:"type:varchar(20);not null"`
	TraceId        string         `gorm:"type:varchar(64)"`
	Accepted       int            `gorm:"not null"`
	Drops          datatypes.JSON `gorm:"type:jsonb"`
	SyntheticDone  bool           `gorm:"default:false"`
	DurationMs     int64          `gorm:"not null"`
	Error          string         `gorm:"type:text"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index"`
}

func (GuideSessionLog) TableName() string {
	return "guide_session_logs"
}
