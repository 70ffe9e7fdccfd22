package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type StartDebugRunRequest struct {
	TargetUserId   uuid.UUID                `json:"target_user_id" validate:"required"`
	ConversationId *uuid.UUID               `json:"conversation_id,omitempty"`
	Entrypoint     string                   `json:"entrypoint" validate:"required,oneof=home chat"`
	Message        string                   `json:"message" validate:"required_if=Entrypoint chat,max=2000"`
	History        []ConversationMessageDTO `json:"history,omitempty" validate:"max=50,dive"`
	EnabledActions []string                 `json:"enabled_actions,omitempty" validate:"max=16,dive,required"`
	StopAt         string                   `json:"stop_at,omitempty"`
}

type ContinueDebugRunRequest struct {
	StopAt string `json:"stop_at,omitempty"`
}

type PipelineArtifactDTO struct {
	Stage     string          `json:"stage"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type DebugRunResponse struct {
	Id             uuid.UUID             `json:"id"`
	TraceId        string                `json:"trace_id"`
	TargetUserId   uuid.UUID             `json:"target_user_id"`
	ConversationId *uuid.UUID            `json:"conversation_id,omitempty"`
	Entrypoint     string                `json:"entrypoint"`
	Status         string                `json:"status"`
	StoppedAtStage *string               `json:"stopped_at_stage,omitempty"`
	Error          string                `json:"error,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	Artifacts      []PipelineArtifactDTO `json:"artifacts,omitempty"`
}
