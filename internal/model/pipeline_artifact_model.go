package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PipelineArtifact struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	RunId     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_artifact_run_stage"`
	Stage     string         `gorm:"type:varchar(40);not null;uniqueIndex:idx_artifact_run_stage"`
	Payload   datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
}

func (PipelineArtifact) TableName() string {
	return "pipeline_artifacts"
}
