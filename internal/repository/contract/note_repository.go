package contract

import (
	"context"
	"time"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/repository/specification"

	"github.com/google/uuid"
)

type NoteRepository interface {
	Create(ctx context.Context, note *entity.Note) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Note, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Note, error)
	// MarkIndexed stamps the time the note's embeddings were last rebuilt.
	MarkIndexed(ctx context.Context, noteId uuid.UUID, at time.Time) error
}
