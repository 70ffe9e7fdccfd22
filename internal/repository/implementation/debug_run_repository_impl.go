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
)

type DebugRunRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DebugRunMapper
}

func NewDebugRunRepository(db *gorm.DB) contract.DebugRunRepository {
	return &DebugRunRepositoryImpl{
		db:     db,
		mapper: mapper.NewDebugRunMapper(),
	}
}

func (r *DebugRunRepositoryImpl) Create(ctx context.Context, run *entity.DebugRun) error {
	if run.Id == uuid.Nil {
		run.Id = uuid.New()
	}
	m, err := r.mapper.ToModel(run)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	run.CreatedAt = m.CreatedAt
	run.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *DebugRunRepositoryImpl) Update(ctx context.Context, run *entity.DebugRun) error {
	m, err := r.mapper.ToModel(run)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	run.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *DebugRunRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DebugRun, error) {
	var m model.DebugRun
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m)
}

type PipelineArtifactRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DebugRunMapper
}

func NewPipelineArtifactRepository(db *gorm.DB) contract.PipelineArtifactRepository {
	return &PipelineArtifactRepositoryImpl{
		db:     db,
		mapper: mapper.NewDebugRunMapper(),
	}
}

func (r *PipelineArtifactRepositoryImpl) Create(ctx context.Context, artifact *entity.PipelineArtifact) error {
	if artifact.Id == uuid.Nil {
		artifact.Id = uuid.New()
	}
	m := r.mapper.ArtifactToModel(artifact)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	artifact.CreatedAt = m.CreatedAt
	return nil
}

func (r *PipelineArtifactRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.PipelineArtifact, error) {
	var models []*model.PipelineArtifact
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.PipelineArtifact, len(models))
	for i, m := range models {
		out[i] = r.mapper.ArtifactToEntity(m)
	}
	return out, nil
}

type GuideSessionLogRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DebugRunMapper
}

func NewGuideSessionLogRepository(db *gorm.DB) contract.GuideSessionLogRepository {
	return &GuideSessionLogRepositoryImpl{
		db:     db,
		mapper: mapper.NewDebugRunMapper(),
	}
}

func (r *GuideSessionLogRepositoryImpl) Create(ctx context.Context, log *entity.GuideSessionLog) error {
	if log.Id == uuid.Nil {
		log.Id = uuid.New()
	}
	m, err := r.mapper.SessionLogToModel(log)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	log.CreatedAt = m.CreatedAt
	return nil
}

func (r *GuideSessionLogRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.GuideSessionLog, error) {
	var models []*model.GuideSessionLog
	if err := applySpecifications(r.db.WithContext(ctx), specs...).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*entity.GuideSessionLog, 0, len(models))
	for _, m := range models {
		e, err := r.mapper.SessionLogToEntity(m)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *GuideSessionLogRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	err := applySpecifications(r.db.WithContext(ctx).Model(&model.GuideSessionLog{}), specs...).Count(&count).Error
	return count, err
}
