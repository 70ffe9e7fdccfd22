package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type DebugRun struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	TraceId        string         `gorm:"type:varchar(64);not null"`
	TargetUserId   uuid.UUID      `gorm:"type:uuid;not null;index"`
	ConversationId *uuid.UUID     `gorm:"type:uuid"`
	Entrypoint     string         `gorm:"type:varchar(20);not null"`
	Message        string         `gorm:"type:text"`
	History        datatypes.JSON `gorm:"type:jsonb"`
	EnabledActions datatypes.JSON `gorm:"type:jsonb"`
	Status         string         `gorm:"type:varchar(20);not null;index"`
	StoppedAtStage *string        `gorm:"type:varchar(40)"`
	Error          string         `gorm:"type:text"`
	CreatedBy      uuid.UUID      `gorm:"type:uuid"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
}

func (DebugRun) TableName() string {
	return "debug_runs"
}
