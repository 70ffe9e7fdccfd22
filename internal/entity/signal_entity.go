package entity

import (
	"time"

	"github.com/google/uuid"
)

type LifeContext struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Kind      string
	Title     string
	Content   string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

type ReadingSession struct {
	Id              uuid.UUID
	UserId          uuid.UUID
	RefKey          string
	Progress        float64
	DurationSeconds int
	StartedAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       *time.Time
}

type VerseHighlight struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	RefKey    string
	Color     string
	VerseText string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

type UserProfile struct {
	UserId               uuid.UUID
	DisplayName          string
	Language             string
	PreferredTranslation string
	Tradition            string
	Goals                string
	UpdatedAt            *time.Time
}
