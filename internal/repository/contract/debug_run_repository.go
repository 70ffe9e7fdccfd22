package contract

import (
	"context"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/repository/specification"
)

type DebugRunRepository interface {
	Create(ctx context.Context, run *entity.DebugRun) error
	Update(ctx context.Context, run *entity.DebugRun) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DebugRun, error)
}

// PipelineArtifactRepository is append-only: there is no update or delete.
type PipelineArtifactRepository interface {
	Create(ctx context.Context, artifact *entity.PipelineArtifact) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PipelineArtifact, error)
}

type GuideSessionLogRepository interface {
	Create(ctx context.Context, log *entity.GuideSessionLog) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.GuideSessionLog, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
