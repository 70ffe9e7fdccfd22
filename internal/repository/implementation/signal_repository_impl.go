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

type LifeContextRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SignalMapper
}

func NewLifeContextRepository(db *gorm.DB) contract.LifeContextRepository {
	return &LifeContextRepositoryImpl{db: db, mapper: mapper.NewSignalMapper()}
}

func (r *LifeContextRepositoryImpl) Create(ctx context.Context, lifeContext *entity.LifeContext) error {
	if lifeContext.Id == uuid.Nil {
		lifeContext.Id = uuid.New()
	}
	m := r.mapper.LifeContextToModel(lifeContext)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*lifeContext = *r.mapper.LifeContextToEntity(m)
	return nil
}

func (r *LifeContextRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.LifeContext, error) {
	var models []*model.LifeContext
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.LifeContext, len(models))
	for i, m := range models {
		out[i] = r.mapper.LifeContextToEntity(m)
	}
	return out, nil
}

func (r *LifeContextRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	err := applySpecifications(r.db.WithContext(ctx).Model(&model.LifeContext{}), specs...).Count(&count).Error
	return count, err
}

type ReadingSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SignalMapper
}

func NewReadingSessionRepository(db *gorm.DB) contract.ReadingSessionRepository {
	return &ReadingSessionRepositoryImpl{db: db, mapper: mapper.NewSignalMapper()}
}

func (r *ReadingSessionRepositoryImpl) Create(ctx context.Context, session *entity.ReadingSession) error {
	if session.Id == uuid.Nil {
		session.Id = uuid.New()
	}
	m := r.mapper.ReadingSessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ReadingSessionToEntity(m)
	return nil
}

func (r *ReadingSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ReadingSession, error) {
	var models []*model.ReadingSession
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.ReadingSession, len(models))
	for i, m := range models {
		out[i] = r.mapper.ReadingSessionToEntity(m)
	}
	return out, nil
}

func (r *ReadingSessionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	err := applySpecifications(r.db.WithContext(ctx).Model(&model.ReadingSession{}), specs...).Count(&count).Error
	return count, err
}

type VerseHighlightRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SignalMapper
}

func NewVerseHighlightRepository(db *gorm.DB) contract.VerseHighlightRepository {
	return &VerseHighlightRepositoryImpl{db: db, mapper: mapper.NewSignalMapper()}
}

func (r *VerseHighlightRepositoryImpl) Create(ctx context.Context, highlight *entity.VerseHighlight) error {
	if highlight.Id == uuid.Nil {
		highlight.Id = uuid.New()
	}
	m := r.mapper.HighlightToModel(highlight)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*highlight = *r.mapper.HighlightToEntity(m)
	return nil
}

func (r *VerseHighlightRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.VerseHighlight, error) {
	var models []*model.VerseHighlight
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.VerseHighlight, len(models))
	for i, m := range models {
		out[i] = r.mapper.HighlightToEntity(m)
	}
	return out, nil
}

func (r *VerseHighlightRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	err := applySpecifications(r.db.WithContext(ctx).Model(&model.VerseHighlight{}), specs...).Count(&count).Error
	return count, err
}

type UserProfileRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.SignalMapper
}

func NewUserProfileRepository(db *gorm.DB) contract.UserProfileRepository {
	return &UserProfileRepositoryImpl{db: db, mapper: mapper.NewSignalMapper()}
}

func (r *UserProfileRepositoryImpl) Save(ctx context.Context, profile *entity.UserProfile) error {
	m := r.mapper.ProfileToModel(profile)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "language", "preferred_translation", "tradition", "goals", "updated_at",
		}),
	}).Create(m).Error
}

func (r *UserProfileRepositoryImpl) FindByUserId(ctx context.Context, userId uuid.UUID) (*entity.UserProfile, error) {
	var m model.UserProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userId).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ProfileToEntity(&m), nil
}
