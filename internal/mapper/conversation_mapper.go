package mapper

import (
	"encoding/json"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/model"

	"gorm.io/datatypes"
)

type ConversationMapper struct{}

func NewConversationMapper() *ConversationMapper {
	return &ConversationMapper{}
}

func (m *ConversationMapper) ToEntity(c *model.ConversationState) (*entity.ConversationState, error) {
	if c == nil {
		return nil, nil
	}

	messages := []entity.ConversationMessage{}
	if len(c.RecentMessages) > 0 {
		if err := json.Unmarshal(c.RecentMessages, &messages); err != nil {
			return nil, err
		}
	}

	return &entity.ConversationState{
		ConversationId: c.ConversationId,
		UserId:         c.UserId,
		Summary:        c.Summary,
		RecentMessages: messages,
		TurnCount:      c.TurnCount,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}, nil
}

func (m *ConversationMapper) ToModel(c *entity.ConversationState) (*model.ConversationState, error) {
	if c == nil {
		return nil, nil
	}

	messages := c.RecentMessages
	if messages == nil {
		messages = []entity.ConversationMessage{}
	}
	raw, err := json.Marshal(messages)
	if err != nil {
		return nil, err
	}

	return &model.ConversationState{
		ConversationId: c.ConversationId,
		UserId:         c.UserId,
		Summary:        c.Summary,
		RecentMessages: datatypes.JSON(raw),
		TurnCount:      c.TurnCount,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}, nil
}
