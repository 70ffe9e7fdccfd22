package mapper

import (
	"time"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/model"

	"gorm.io/gorm"
)

type NoteMapper struct{}

func NewNoteMapper() *NoteMapper {
	return &NoteMapper{}
}

func (m *NoteMapper) ToEntity(n *model.Note) *entity.Note {
	if n == nil {
		return nil
	}

	var deletedAt *time.Time
	if n.DeletedAt.Valid {
		t := n.DeletedAt.Time
		deletedAt = &t
	}

	kind := n.Kind
	if kind == "" {
		kind = entity.NoteKindJournal
	}

	return &entity.Note{
		Id:        n.Id,
		UserId:    n.UserId,
		Kind:      kind,
		Title:     n.Title,
		Content:   n.Content,
		RefKey:    n.RefKey,
		IndexedAt: n.IndexedAt,
		CreatedAt: n.CreatedAt,
		UpdatedAt: optionalTime(n.UpdatedAt),
		DeletedAt: deletedAt,
		IsDeleted: n.DeletedAt.Valid,
	}
}

func (m *NoteMapper) ToModel(n *entity.Note) *model.Note {
	if n == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if n.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *n.DeletedAt, Valid: true}
	} else if n.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	kind := n.Kind
	if kind == "" {
		kind = entity.NoteKindJournal
	}

	return &model.Note{
		Id:        n.Id,
		UserId:    n.UserId,
		Kind:      kind,
		Title:     n.Title,
		Content:   n.Content,
		RefKey:    n.RefKey,
		IndexedAt: n.IndexedAt,
		CreatedAt: n.CreatedAt,
		UpdatedAt: valueTime(n.UpdatedAt),
		DeletedAt: deletedAt,
	}
}

func (m *NoteMapper) ToEntities(notes []*model.Note) []*entity.Note {
	entities := make([]*entity.Note, len(notes))
	for i, n := range notes {
		entities[i] = m.ToEntity(n)
	}
	return entities
}

// optionalTime maps a zero timestamp column to nil.
func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func valueTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
