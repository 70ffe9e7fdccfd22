package unitofwork

import (
	"context"

	"devotion-guide-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	LifeContextRepository() contract.LifeContextRepository
	ReadingSessionRepository() contract.ReadingSessionRepository
	VerseHighlightRepository() contract.VerseHighlightRepository
	NoteRepository() contract.NoteRepository
	NoteEmbeddingRepository() contract.NoteEmbeddingRepository
	UserProfileRepository() contract.UserProfileRepository

	ConversationStateRepository() contract.ConversationStateRepository
	DebugRunRepository() contract.DebugRunRepository
	PipelineArtifactRepository() contract.PipelineArtifactRepository
	GuideSessionLogRepository() contract.GuideSessionLogRepository
}
