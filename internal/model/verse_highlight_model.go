package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VerseHighlight struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID      `gorm:"type:uuid;not null;index"`
	RefKey    string         `gorm:"type:varchar(32);not null"`
	Color     string         `gorm:"type:varchar(20)"`
	VerseText string         `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (VerseHighlight) TableName() string {
	return "verse_highlights"
}
