package implementation

import (
	"context"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/mapper"
	"devotion-guide-be/internal/model"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/specification"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const defaultSimilarityLimit = 5

type NoteEmbeddingRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.NoteEmbeddingMapper
}

func NewNoteEmbeddingRepository(db *gorm.DB) contract.NoteEmbeddingRepository {
	return &NoteEmbeddingRepositoryImpl{
		db:     db,
		mapper: mapper.NewNoteEmbeddingMapper(),
	}
}

func (r *NoteEmbeddingRepositoryImpl) CreateBulk(ctx context.Context, embeddings []*entity.NoteEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	for _, e := range embeddings {
		if e.Id == uuid.Nil {
			e.Id = uuid.New()
		}
	}
	models := r.mapper.ToModels(embeddings)

	if err := r.db.WithContext(ctx).CreateInBatches(models, 100).Error; err != nil {
		return err
	}

	for i, m := range models {
		*embeddings[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *NoteEmbeddingRepositoryImpl) DeleteByNoteId(ctx context.Context, noteId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("note_id = ?", noteId).Delete(&model.NoteEmbedding{}).Error
}

func (r *NoteEmbeddingRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := applySpecifications(r.db.WithContext(ctx).Model(&model.NoteEmbedding{}), specs...)
	err := query.Count(&count).Error
	return count, err
}

// SearchSimilar ranks by pgvector cosine distance, where similarity is
// 1 - (a <=> b). Chunks of soft-deleted notes never match.
func (r *NoteEmbeddingRepositoryImpl) SearchSimilar(ctx context.Context, q contract.SimilarityQuery) ([]*contract.ScoredNoteEmbedding, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultSimilarityLimit
	}

	type result struct {
		model.NoteEmbedding
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(q.Vector)

	query := r.db.WithContext(ctx).
		Table("note_embeddings").
		Select("note_embeddings.*, 1 - (note_embeddings.embedding_value <=> ?) AS similarity", queryVector).
		Joins("JOIN notes ON notes.id = note_embeddings.note_id").
		Where("notes.user_id = ?", q.UserId).
		Where("notes.deleted_at IS NULL").
		Where("1 - (note_embeddings.embedding_value <=> ?) >= ?", queryVector, q.Threshold)
	if q.Model != "" {
		query = query.Where("note_embeddings.model = ?", q.Model)
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredNoteEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredNoteEmbedding{
			Embedding:  r.mapper.ToEntity(&res.NoteEmbedding),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
