package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"devotion-guide-be/internal/config"
	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/specification"
	"devotion-guide-be/internal/repository/unitofwork"
	"devotion-guide-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDB(config.DatabaseConfig{Connection: dsn})
	require.NoError(t, err, "Failed to connect to DB")

	ctx := context.Background()
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(ctx)

	sqlDB, _ := gormDB.DB()
	require.NoError(t, sqlDB.Ping())

	// Count implies the table and its columns exist.
	t.Run("Signal tables are readable", func(t *testing.T) {
		_, err := uow.LifeContextRepository().Count(ctx)
		assert.NoError(t, err)
		_, err = uow.ReadingSessionRepository().Count(ctx)
		assert.NoError(t, err)
		_, err = uow.VerseHighlightRepository().Count(ctx)
		assert.NoError(t, err)
		_, err = uow.NoteEmbeddingRepository().Count(ctx)
		assert.NoError(t, err)
		_, err = uow.GuideSessionLogRepository().Count(ctx)
		assert.NoError(t, err)
	})

	t.Run("Semantic search over pgvector", func(t *testing.T) {
		userId := uuid.New()
		note := &entity.Note{
			Title:   "Integration note " + uuid.NewString(),
			Content: "Be still and know.",
			RefKey:  "PSA:46:10",
			UserId:  userId,
		}

		tx := uowFactory.NewUnitOfWork(ctx)
		require.NoError(t, tx.Begin(ctx))
		defer func() { _ = tx.Rollback() }()

		require.NoError(t, tx.NoteRepository().Create(ctx, note))
		require.NoError(t, tx.NoteEmbeddingRepository().CreateBulk(ctx, []*entity.NoteEmbedding{{
			NoteId:         note.Id,
			Document:       note.Content,
			Model:          "nomic-embed-text",
			EmbeddingValue: unitVector(768, 0),
		}}))

		query := contract.SimilarityQuery{Vector: unitVector(768, 0), UserId: userId, Model: "nomic-embed-text", Limit: 5, Threshold: 0.5}
		hits, err := tx.NoteEmbeddingRepository().SearchSimilar(ctx, query)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.InDelta(t, 1.0, hits[0].Similarity, 0.001)

		query.Model = "another-model"
		hits, err = tx.NoteEmbeddingRepository().SearchSimilar(ctx, query)
		require.NoError(t, err)
		assert.Empty(t, hits, "vectors from other models are not compared")

		query.Model = "nomic-embed-text"
		query.Vector = unitVector(768, 1)
		hits, err = tx.NoteEmbeddingRepository().SearchSimilar(ctx, query)
		require.NoError(t, err)
		assert.Empty(t, hits, "orthogonal vectors fall below the threshold")

		require.NoError(t, tx.NoteRepository().MarkIndexed(ctx, note.Id, time.Now()))
		owned, err := tx.NoteRepository().FindAll(ctx, specification.UserOwnedBy{UserID: userId})
		require.NoError(t, err)
		require.Len(t, owned, 1)
		assert.NotNil(t, owned[0].IndexedAt)
		assert.Equal(t, entity.NoteKindJournal, owned[0].Kind)
	})
}

func unitVector(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}
