package dto

import (
	"time"

	"github.com/google/uuid"
)

type ConversationMessageDTO struct {
	Role      string    `json:"role" validate:"required,oneof=user assistant"`
	Content   string    `json:"content" validate:"required"`
	Timestamp time.Time `json:"timestamp"`
}

type ConversationStateResponse struct {
	ConversationId uuid.UUID                `json:"conversation_id"`
	Summary        string                   `json:"summary"`
	RecentMessages []ConversationMessageDTO `json:"recent_messages"`
	TurnCount      int                      `json:"turn_count"`
	UpdatedAt      time.Time                `json:"updated_at"`
}
