package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noteSaved(id string) events.Event {
	return events.New(events.TypeNoteSaved, map[string]interface{}{"note_id": id})
}

func TestNoteIndexer_ReplacesEmbeddings(t *testing.T) {
	noteID := uuid.New()
	uow := &fakeUow{
		notes: &noteRepo{notes: map[uuid.UUID]*entity.Note{noteID: {
			Id:      noteID,
			Title:   "Morning",
			Content: strings.Repeat("Be still and know that I am God. ", 100),
			RefKey:  "PSA:46:10",
			UserId:  testUser,
		}}},
		embeddings: &embeddingRepo{},
	}
	embedder := &fakeEmbedder{}
	indexer := NewNoteIndexerService(fakeFactory{uow: uow}, embedder, "nomic-embed-text", logger.NewNopLogger())

	require.NoError(t, indexer.HandleNoteSaved(context.Background(), noteSaved(noteID.String())))

	assert.Equal(t, []uuid.UUID{noteID}, uow.embeddings.deleted)
	assert.Equal(t, 1, uow.commits)
	require.Greater(t, len(uow.embeddings.stored), 1)
	assert.Len(t, embedder.texts, len(uow.embeddings.stored))
	for i, e := range uow.embeddings.stored {
		assert.Equal(t, noteID, e.NoteId)
		assert.Equal(t, i, e.ChunkIndex)
		assert.Equal(t, "nomic-embed-text", e.Model)
	}
	assert.Contains(t, uow.notes.indexed, noteID)
	assert.True(t, strings.HasPrefix(uow.embeddings.stored[0].Document, "Note Title: Morning"))
	assert.Contains(t, uow.embeddings.stored[len(uow.embeddings.stored)-1].Document, "Passage: PSA:46:10")
}

func TestNoteIndexer_DeletedNoteDropsVectors(t *testing.T) {
	noteID := uuid.New()
	uow := &fakeUow{notes: &noteRepo{notes: map[uuid.UUID]*entity.Note{}}, embeddings: &embeddingRepo{}}
	indexer := NewNoteIndexerService(fakeFactory{uow: uow}, &fakeEmbedder{}, "nomic-embed-text", logger.NewNopLogger())

	require.NoError(t, indexer.HandleNoteSaved(context.Background(), noteSaved(noteID.String())))
	assert.Equal(t, []uuid.UUID{noteID}, uow.embeddings.deleted)
	assert.Empty(t, uow.embeddings.stored)
}

func TestNoteIndexer_Errors(t *testing.T) {
	noteID := uuid.New()
	uow := &fakeUow{
		notes:      &noteRepo{notes: map[uuid.UUID]*entity.Note{noteID: {Id: noteID, Title: "t", Content: "c"}}},
		embeddings: &embeddingRepo{},
	}

	t.Run("bad id is skipped", func(t *testing.T) {
		indexer := NewNoteIndexerService(fakeFactory{uow: uow}, &fakeEmbedder{}, "nomic-embed-text", logger.NewNopLogger())
		assert.NoError(t, indexer.HandleNoteSaved(context.Background(), noteSaved("not-a-uuid")))
	})

	t.Run("embedding failure asks for redelivery", func(t *testing.T) {
		indexer := NewNoteIndexerService(fakeFactory{uow: uow}, &fakeEmbedder{err: errors.New("ollama down")}, "nomic-embed-text", logger.NewNopLogger())
		err := indexer.HandleNoteSaved(context.Background(), noteSaved(noteID.String()))
		assert.ErrorContains(t, err, "ollama down")
		assert.Empty(t, uow.embeddings.deleted)
		assert.NotContains(t, uow.notes.indexed, noteID)
	})
}

func TestNoteDocument(t *testing.T) {
	tests := []struct {
		name   string
		note   entity.Note
		prefix string
	}{
		{"journal", entity.Note{Kind: entity.NoteKindJournal, Title: "Dawn", Content: "quiet"}, "Note Title: Dawn"},
		{"prayer", entity.Note{Kind: entity.NoteKindPrayer, Title: "For Sam", Content: "healing"}, "Prayer Title: For Sam"},
		{"sermon", entity.Note{Kind: entity.NoteKindSermon, Title: "Luke 15", Content: "the lost sheep"}, "Sermon Note Title: Luke 15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := noteDocument(&tt.note)
			assert.True(t, strings.HasPrefix(doc, tt.prefix), doc)
			assert.NotContains(t, doc, "Passage:")
		})
	}
}
