package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// NoteEmbedding is derived data: rows are replaced wholesale whenever the
// note is re-indexed, so there is no soft delete.
type NoteEmbedding struct {
	Id             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	NoteId         uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_note_embeddings_chunk,priority:1"`
	ChunkIndex     int             `gorm:"not null;default:0;uniqueIndex:idx_note_embeddings_chunk,priority:2"`
	Model          string          `gorm:"type:varchar(64);not null;default:'';index"`
	Document       string          `gorm:"type:text"`
	EmbeddingValue pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt      time.Time       `gorm:"autoCreateTime"`
}

func (NoteEmbedding) TableName() string {
	return "note_embeddings"
}
