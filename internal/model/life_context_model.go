package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LifeContext is a long-lived memory about the user (season of life, prayer
// request, recurring struggle) kept by the memory service.
type LifeContext struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserId    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Kind      string         `gorm:"type:varchar(50);not null"`
	Title     string         `gorm:"type:varchar(255);not null"`
	Content   string         `gorm:"type:text"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (LifeContext) TableName() string {
	return "life_contexts"
}
