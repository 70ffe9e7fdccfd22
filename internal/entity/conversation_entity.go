package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type ConversationState struct {
	ConversationId uuid.UUID
	UserId         uuid.UUID
	Summary        string
	RecentMessages []ConversationMessage
	TurnCount      int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
