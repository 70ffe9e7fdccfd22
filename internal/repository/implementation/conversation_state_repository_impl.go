package implementation

import (
	"context"
	"errors"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/mapper"
	"devotion-guide-be/internal/model"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationStateRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ConversationMapper
}

func NewConversationStateRepository(db *gorm.DB) contract.ConversationStateRepository {
	return &ConversationStateRepositoryImpl{
		db:     db,
		mapper: mapper.NewConversationMapper(),
	}
}

func (r *ConversationStateRepositoryImpl) Save(ctx context.Context, state *entity.ConversationState) error {
	m, err := r.mapper.ToModel(state)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "recent_messages", "turn_count", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return err
	}
	state.CreatedAt = m.CreatedAt
	state.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *ConversationStateRepositoryImpl) Delete(ctx context.Context, conversationId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("conversation_id = ?", conversationId).Delete(&model.ConversationState{}).Error
}

func (r *ConversationStateRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ConversationState, error) {
	var m model.ConversationState
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}

func (r *ConversationStateRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ConversationState, error) {
	var models []*model.ConversationState
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.ConversationState, 0, len(models))
	for _, m := range models {
		e, err := r.mapper.ToEntity(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
