package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	NoteKindJournal = "journal"
	NoteKindPrayer  = "prayer"
	NoteKindSermon  = "sermon"
)

type Note struct {
	Id        uuid.UUID
	UserId    uuid.UUID
	Kind      string
	Title     string
	Content   string
	RefKey    string
	IndexedAt *time.Time
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

// NoteEmbedding is one embedded chunk of a note. Vectors are only
// comparable with others produced by the same Model.
type NoteEmbedding struct {
	Id             uuid.UUID
	NoteId         uuid.UUID
	ChunkIndex     int
	Model          string
	Document       string
	EmbeddingValue []float32
	CreatedAt      time.Time
}
