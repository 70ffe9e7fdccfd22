package contract

import (
	"context"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ConversationStateRepository interface {
	// Save inserts or replaces the row keyed by conversation id.
	Save(ctx context.Context, state *entity.ConversationState) error
	Delete(ctx context.Context, conversationId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationState, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationState, error)
}
