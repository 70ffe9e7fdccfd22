package model

import (
	"time"

	"github.com/google/uuid"
)

type UserProfile struct {
	UserId               uuid.UUID `gorm:"type:uuid;primaryKey"`
	DisplayName          string    `gorm:"type:varchar(100)"`
	Language             string    `gorm:"type:varchar(10);default:'en'"`
	PreferredTranslation string    `gorm:"type:varchar(20)"`
	Tradition            string    `gorm:"type:varchar(50)"`
	Goals                string    `gorm:"type:text"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
