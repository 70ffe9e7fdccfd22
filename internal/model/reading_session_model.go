package model

import (
	"time"

	"github.com/google/uuid"
)

type ReadingSession struct {
	Id              uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId          uuid.UUID `gorm:"type:uuid;not null;index:idx_reading_user_started"`
	RefKey          string    `gorm:"type:varchar(32);not null;index"`
	Progress        float64   `gorm:"default:0"`
	DurationSeconds int       `gorm:"default:0"`
	StartedAt       time.Time `gorm:"not null;index:idx_reading_user_started"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (ReadingSession) TableName() string {
	return "reading_sessions"
}
