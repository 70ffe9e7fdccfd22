package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ConversationState struct {
	ConversationId uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId         uuid.UUID      `gorm:"type:uuid;not null;index"`
	Summary        string         `gorm:"type:text"`
	RecentMessages datatypes.JSON `gorm:"type:jsonb"`
	TurnCount      int            `gorm:"default:0"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
}

func (ConversationState) TableName() string {
	return "conversation_states"
}
