package contract

import (
	"context"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/repository/specification"

	"github.com/google/uuid"
)

// ScoredNoteEmbedding wraps NoteEmbedding with its cosine similarity.
type ScoredNoteEmbedding struct {
	Embedding  *entity.NoteEmbedding
	Similarity float64
}

// SimilarityQuery selects one user's note chunks near Vector. Only chunks
// embedded by Model are compared; an empty Model matches any.
type SimilarityQuery struct {
	Vector    []float32
	UserId    uuid.UUID
	Model     string
	Limit     int
	Threshold float64
}

type NoteEmbeddingRepository interface {
	CreateBulk(ctx context.Context, embeddings []*entity.NoteEmbedding) error
	DeleteByNoteId(ctx context.Context, noteId uuid.UUID) error
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilar returns the closest chunks at or above the threshold, best first.
	SearchSimilar(ctx context.Context, q SimilarityQuery) ([]*ScoredNoteEmbedding, error)
}
