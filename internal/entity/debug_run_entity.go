package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type DebugRun struct {
	Id             uuid.UUID
	TraceId        string
	TargetUserId   uuid.UUID
	ConversationId *uuid.UUID
	Entrypoint     string
	Message        string
	History        []ConversationMessage
	EnabledActions []string
	Status         string
	StoppedAtStage *string
	Error          string
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type PipelineArtifact struct {
	Id        uuid.UUID
	RunId     uuid.UUID
	Stage     string
	Payload   json.RawMessage
	CreatedAt time.Time
}

type GuideSessionLog struct {
	Id             uuid.UUID
	UserId         uuid.UUID
	ConversationId *uuid.UUID
	Entrypoint     string
	TraceId        string
	Accepted       int
	Drops          map[string]int
	SyntheticDone  bool
	DurationMs     int64
	Error          string
	CreatedAt      time.Time
}
