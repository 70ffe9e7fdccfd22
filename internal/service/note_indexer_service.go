package service

import (
	"context"
	"fmt"
	"time"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/internal/repository/specification"
	"devotion-guide-be/internal/repository/unitofwork"
	"devotion-guide-be/pkg/embedding"
	"devotion-guide-be/pkg/events"
	"devotion-guide-be/pkg/lexical"
	"devotion-guide-be/pkg/utils"

	"github.com/google/uuid"
)

const (
	noteChunkSize    = 1500
	noteChunkOverlap = 200
)

// INoteIndexerService keeps note_embeddings in step with the notes owned by
// the journaling service, which announces saves on the bus.
type INoteIndexerService interface {
	HandleNoteSaved(ctx context.Context, event events.Event) error
}

type noteIndexerService struct {
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	embeddingModel    string
	logger            logger.ILogger
	now               func() time.Time
}

// NewNoteIndexerService tags every stored chunk with embeddingModel so the
// semantic fetcher never compares vectors from different models.
func NewNoteIndexerService(uowFactory unitofwork.RepositoryFactory, embeddingProvider embedding.EmbeddingProvider, embeddingModel string, log logger.ILogger) INoteIndexerService {
	return &noteIndexerService{
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		embeddingModel:    embeddingModel,
		logger:            log,
		now:               time.Now,
	}
}

// HandleNoteSaved re-embeds one note. A returned error asks the bus to
// redeliver; events that can never succeed return nil.
func (ns *noteIndexerService) HandleNoteSaved(ctx context.Context, event events.Event) error {
	noteId, err := uuid.Parse(events.String(event, "note_id"))
	if err != nil {
		ns.logger.Warn("INDEXER", "Ignoring note event without a valid note_id", map[string]interface{}{
			"type": event.EventType(),
		})
		return nil
	}

	uow := ns.uowFactory.NewUnitOfWork(ctx)
	note, err := uow.NoteRepository().FindOne(ctx, specification.ByID{ID: noteId})
	if err != nil {
		return fmt.Errorf("load note %s: %w", noteId, err)
	}
	if note == nil {
		// Deleted since the event was published: its vectors must not surface.
		return uow.NoteEmbeddingRepository().DeleteByNoteId(ctx, noteId)
	}

	chunks := utils.SplitText(noteDocument(note), noteChunkSize, noteChunkOverlap)
	fresh := make([]*entity.NoteEmbedding, 0, len(chunks))
	for i, chunk := range chunks {
		vector, err := ns.embeddingProvider.Embed(ctx, chunk, embedding.TaskDocument)
		if err != nil {
			return fmt.Errorf("embed chunk %d of note %s: %w", i, noteId, err)
		}
		fresh = append(fresh, &entity.NoteEmbedding{
			Id:             uuid.New(),
			Document:       chunk,
			EmbeddingValue: vector,
			NoteId:         note.Id,
			ChunkIndex:     i,
			Model:          ns.embeddingModel,
		})
	}

	err = ns.uowFactory.Transaction(ctx, func(tx unitofwork.UnitOfWork) error {
		if err := tx.NoteEmbeddingRepository().DeleteByNoteId(ctx, note.Id); err != nil {
			return fmt.Errorf("delete old embeddings: %w", err)
		}
		if err := tx.NoteEmbeddingRepository().CreateBulk(ctx, fresh); err != nil {
			return fmt.Errorf("store embeddings: %w", err)
		}
		if err := tx.NoteRepository().MarkIndexed(ctx, note.Id, ns.now().UTC()); err != nil {
			return fmt.Errorf("mark note indexed: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ns.logger.Info("INDEXER", "Note indexed", map[string]interface{}{
		"note_id": noteId.String(),
		"chunks":  len(fresh),
		"model":   ns.embeddingModel,
	})
	return nil
}

func noteDocument(note *entity.Note) string {
	label := "Note"
	if note.Kind == entity.NoteKindPrayer {
		label = "Prayer"
	} else if note.Kind == entity.NoteKindSermon {
		label = "Sermon Note"
	}
	doc := fmt.Sprintf("%s Title: %s\n\n%s", label, note.Title, lexical.PlainText(note.Content))
	if note.RefKey != "" {
		doc += "\n\nPassage: " + note.RefKey
	}
	return doc
}
