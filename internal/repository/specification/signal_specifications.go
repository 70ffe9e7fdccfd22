package specification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserOwnedBy scopes any user-owned table.
type UserOwnedBy struct {
	UserID uuid.UUID
}

func (s UserOwnedBy) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("user_id = ?", s.UserID)
}

// Since keeps rows whose Column is at or after Time.
type Since struct {
	Column string
	Time   time.Time
}

func (s Since) Apply(db *gorm.DB) *gorm.DB {
	column := s.Column
	if column == "" {
		column = "created_at"
	}
	return db.Where(clause.Gte{Column: clause.Column{Name: column}, Value: s.Time})
}

type HasSummary struct{}

func (s HasSummary) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("summary <> ''")
}

type ByConversationID struct {
	ConversationID uuid.UUID
}

func (s ByConversationID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("conversation_id = ?", s.ConversationID)
}

type ByRunID struct {
	RunID uuid.UUID
}

func (s ByRunID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("run_id = ?", s.RunID)
}
