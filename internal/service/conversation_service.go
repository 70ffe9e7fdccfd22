package service

import (
	"context"

	"devotion-guide-be/internal/dto"
	"devotion-guide-be/internal/entity"
	"devotion-guide-be/pkg/guide/conversation"

	"github.com/google/uuid"
)

type IConversationService interface {
	GetState(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) (*dto.ConversationStateResponse, error)
	DeleteState(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error
}

type conversationService struct {
	manager *conversation.Manager
}

func NewConversationService(manager *conversation.Manager) IConversationService {
	return &conversationService{manager: manager}
}

func (cs *conversationService) GetState(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) (*dto.ConversationStateResponse, error) {
	state, err := cs.manager.Load(ctx, conversationId, userId)
	if err != nil {
		return nil, err
	}
	return &dto.ConversationStateResponse{
		ConversationId: state.ConversationId,
		Summary:        state.Summary,
		RecentMessages: toMessageDTOs(state.RecentMessages),
		TurnCount:      state.TurnCount,
		UpdatedAt:      state.UpdatedAt,
	}, nil
}

func (cs *conversationService) DeleteState(ctx context.Context, userId uuid.UUID, conversationId uuid.UUID) error {
	return cs.manager.Delete(ctx, conversationId, userId)
}

func toMessageDTOs(messages []entity.ConversationMessage) []dto.ConversationMessageDTO {
	out := make([]dto.ConversationMessageDTO, len(messages))
	for i, m := range messages {
		out[i] = dto.ConversationMessageDTO{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
	}
	return out
}

func fromMessageDTOs(messages []dto.ConversationMessageDTO) []entity.ConversationMessage {
	if len(messages) == 0 {
		return nil
	}
	out := make([]entity.ConversationMessage, len(messages))
	for i, m := range messages {
		out[i] = entity.ConversationMessage{Role: m.Role, Content: m.Content, Timestamp: m.Timestamp}
	}
	return out
}
