package unitofwork

import (
	"context"
	"errors"

	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/implementation"

	"gorm.io/gorm"
)

var (
	ErrTransactionActive  = errors.New("transaction already started")
	ErrNoTransaction      = errors.New("no transaction in progress")
	ErrManagedTransaction = errors.New("transaction is managed by RepositoryFactory.Transaction")
)

type UnitOfWorkImpl struct {
	db      *gorm.DB
	tx      *gorm.DB
	managed bool
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &UnitOfWorkImpl{
		db: db,
	}
}

func (u *UnitOfWorkImpl) getDB() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWorkImpl) Begin(ctx context.Context) error {
	switch {
	case u.managed:
		return ErrManagedTransaction
	case u.tx != nil:
		return ErrTransactionActive
	}
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	u.tx = tx
	return nil
}

func (u *UnitOfWorkImpl) Commit() error {
	switch {
	case u.managed:
		return ErrManagedTransaction
	case u.tx == nil:
		return ErrNoTransaction
	}
	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

// Rollback after a successful Commit is a no-op, so it can be deferred.
func (u *UnitOfWorkImpl) Rollback() error {
	switch {
	case u.managed:
		return ErrManagedTransaction
	case u.tx == nil:
		return nil
	}
	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

// Repository accessors bind to the open transaction when there is one.

func (u *UnitOfWorkImpl) LifeContextRepository() contract.LifeContextRepository {
	return implementation.NewLifeContextRepository(u.getDB())
}

func (u *UnitOfWorkImpl) ReadingSessionRepository() contract.ReadingSessionRepository {
	return implementation.NewReadingSessionRepository(u.getDB())
}

func (u *UnitOfWorkImpl) VerseHighlightRepository() contract.VerseHighlightRepository {
	return implementation.NewVerseHighlightRepository(u.getDB())
}

func (u *UnitOfWorkImpl) NoteRepository() contract.NoteRepository {
	return implementation.NewNoteRepository(u.getDB())
}

func (u *UnitOfWorkImpl) NoteEmbeddingRepository() contract.NoteEmbeddingRepository {
	return implementation.NewNoteEmbeddingRepository(u.getDB())
}

func (u *UnitOfWorkImpl) UserProfileRepository() contract.UserProfileRepository {
	return implementation.NewUserProfileRepository(u.getDB())
}

func (u *UnitOfWorkImpl) ConversationStateRepository() contract.ConversationStateRepository {
	return implementation.NewConversationStateRepository(u.getDB())
}

func (u *UnitOfWorkImpl) DebugRunRepository() contract.DebugRunRepository {
	return implementation.NewDebugRunRepository(u.getDB())
}

func (u *UnitOfWorkImpl) PipelineArtifactRepository() contract.PipelineArtifactRepository {
	return implementation.NewPipelineArtifactRepository(u.getDB())
}

func (u *UnitOfWorkImpl) GuideSessionLogRepository() contract.GuideSessionLogRepository {
	return implementation.NewGuideSessionLogRepository(u.getDB())
}
