package implementation

import (
	"context"
	"errors"
	"time"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/mapper"
	"devotion-guide-be/internal/model"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NoteRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.NoteMapper
}

func NewNoteRepository(db *gorm.DB) contract.NoteRepository {
	return &NoteRepositoryImpl{
		db:     db,
		mapper: mapper.NewNoteMapper(),
	}
}

func (r *NoteRepositoryImpl) Create(ctx context.Context, note *entity.Note) error {
	if note.Id == uuid.Nil {
		note.Id = uuid.New()
	}
	m := r.mapper.ToModel(note)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*note = *r.mapper.ToEntity(m)
	return nil
}

func (r *NoteRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Note, error) {
	var m model.Note
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *NoteRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Note, error) {
	var models []*model.Note
	query := applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

// MarkIndexed leaves updated_at alone so indexing never reorders the
// recent-notes fetch.
func (r *NoteRepositoryImpl) MarkIndexed(ctx context.Context, noteId uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.Note{}).
		Where("id = ?", noteId).
		UpdateColumn("indexed_at", at).Error
}
