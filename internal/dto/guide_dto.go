package dto

import (
	"time"

	"github.com/google/uuid"
)

type SuggestionRequest struct {
	Entrypoint     string     `json:"entrypoint" validate:"required,oneof=home chat"`
	Message        string     `json:"message" validate:"required_if=Entrypoint chat,max=2000"`
	ConversationId *uuid.UUID `json:"conversation_id,omitempty"`
	EnabledActions []string   `json:"enabled_actions,omitempty" validate:"max=16,dive,required"`
	Debug          bool       `json:"debug,omitempty"`
}

// GuideSessionMessage is published on the telemetry topic once a streaming
// session has ended.
type GuideSessionMessage struct {
	UserId         uuid.UUID      `json:"user_id"`
	ConversationId *uuid.UUID     `json:"conversation_id,omitempty"`
	Entrypoint     string         `json:"entrypoint"`
	TraceId        string         `json:"trace_id"`
	Accepted       int            `json:"accepted"`
	Drops          map[string]int `json:"drops"`
	SyntheticDone  bool           `json:"synthetic_done"`
	DurationMs     int64          `json:"duration_ms"`
	Error          string         `json:"error,omitempty"`
	FinishedAt     time.Time      `json:"finished_at"`
}

type NoteSavedMessage struct {
	NoteId uuid.UUID `json:"note_id"`
}
