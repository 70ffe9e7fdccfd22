package contract

import (
	"context"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/repository/specification"

	"github.com/google/uuid"
)

type LifeContextRepository interface {
	Create(ctx context.Context, lifeContext *entity.LifeContext) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LifeContext, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type ReadingSessionRepository interface {
	Create(ctx context.Context, session *entity.ReadingSession) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ReadingSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type VerseHighlightRepository interface {
	Create(ctx context.Context, highlight *entity.VerseHighlight) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.VerseHighlight, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}

type UserProfileRepository interface {
	Save(ctx context.Context, profile *entity.UserProfile) error
	FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.UserProfile, error)
}
