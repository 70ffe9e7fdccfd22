package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Note mirrors the journaling service's notes table. This service only reads
// it, apart from stamping IndexedAt after embedding.
type Note struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID      `gorm:"type:uuid;not null;index:idx_notes_user_updated,priority:1"`
	Kind      string         `gorm:"type:varchar(16);not null;default:'journal'"`
	Title     string         `gorm:"type:varchar(255);not null"`
	Content   string         `gorm:"type:text"`
	RefKey    string         `gorm:"type:varchar(32)"`
	IndexedAt *time.Time
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime;index:idx_notes_user_updated,priority:2,sort:desc"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (Note) TableName() string {
	return "notes"
}
