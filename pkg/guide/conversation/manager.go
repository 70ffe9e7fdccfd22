package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/specification"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// DefaultWindowSize counts messages, not turns.
	DefaultWindowSize = 12
)

var (
	ErrNotFound     = errors.New("conversation not found")
	ErrAccessDenied = errors.New("conversation belongs to another user")
	ErrEmptyTurn    = errors.New("turn has no user message")
)

type TurnInput struct {
	ConversationID   uuid.UUID
	UserID           uuid.UUID
	UserMessage      string
	AssistantMessage string
}

// Manager keeps one rolling window per conversation. Rows are read then
// written without optimistic locking: callers must keep at most one turn in
// flight per conversation.
type Manager struct {
	repo       contract.ConversationStateRepository
	summarizer Summarizer
	window     int
	logger     logger.ILogger
	now        func() time.Time
}

func NewManager(repo contract.ConversationStateRepository, summarizer Summarizer, window int, log logger.ILogger) *Manager {
	if window <= 0 {
		window = DefaultWindowSize
	}
	if summarizer == nil {
		summarizer = ExtractiveSummarizer{}
	}
	return &Manager{
		repo:       repo,
		summarizer: summarizer,
		window:     window,
		logger:     log,
		now:        time.Now,
	}
}

func (m *Manager) WindowSize() int { return m.window }

func (m *Manager) find(ctx context.Context, conversationID, userID uuid.UUID) (*entity.ConversationState, error) {
	state, err := m.repo.FindOne(ctx, specification.ByConversationID{ConversationID: conversationID})
	if err != nil {
		return nil, fmt.Errorf("load conversation state: %w", err)
	}
	if state == nil {
		return nil, nil
	}
	if state.UserId != userID {
		return nil, ErrAccessDenied
	}
	return state, nil
}

// Load returns the persisted state, or ErrNotFound when the conversation has
// no turn recorded yet.
func (m *Manager) Load(ctx context.Context, conversationID, userID uuid.UUID) (*entity.ConversationState, error) {
	state, err := m.find(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, ErrNotFound
	}
	return state, nil
}

// RecordTurn appends the user and assistant messages, trims the window and
// folds the trimmed messages into the summary. The summary is only rewritten
// when trimming happened.
func (m *Manager) RecordTurn(ctx context.Context, in TurnInput) (*entity.ConversationState, error) {
	if strings.TrimSpace(in.UserMessage) == "" {
		return nil, ErrEmptyTurn
	}

	state, err := m.find(ctx, in.ConversationID, in.UserID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = &entity.ConversationState{
			ConversationId: in.ConversationID,
			UserId:         in.UserID,
		}
	}

	now := m.now().UTC()
	state.RecentMessages = append(state.RecentMessages, entity.ConversationMessage{
		Role:      RoleUser,
		Content:   in.UserMessage,
		Timestamp: now,
	})
	if strings.TrimSpace(in.AssistantMessage) != "" {
		state.RecentMessages = append(state.RecentMessages, entity.ConversationMessage{
			Role:      RoleAssistant,
			Content:   in.AssistantMessage,
			Timestamp: now,
		})
	}
	state.TurnCount++

	if overflow := len(state.RecentMessages) - m.window; overflow > 0 {
		trimmed := append([]entity.ConversationMessage(nil), state.RecentMessages[:overflow]...)
		state.RecentMessages = append([]entity.ConversationMessage(nil), state.RecentMessages[overflow:]...)
		state.Summary = m.summarize(ctx, state.Summary, trimmed)

		m.logger.Info("CONVERSATION", "Window trimmed", map[string]interface{}{
			"conversation_id": in.ConversationID.String(),
			"trimmed":         len(trimmed),
			"turn_count":      state.TurnCount,
		})
	}

	if err := m.repo.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("save conversation state: %w", err)
	}
	return state, nil
}

func (m *Manager) summarize(ctx context.Context, previous string, trimmed []entity.ConversationMessage) string {
	summary, err := m.summarizer.Summarize(ctx, previous, trimmed)
	if err == nil && strings.TrimSpace(summary) != "" {
		return summary
	}
	if err != nil {
		m.logger.Warn("CONVERSATION", "Summary model failed, using extractive summary", map[string]interface{}{
			"error": err.Error(),
		})
	}
	fallback, _ := ExtractiveSummarizer{}.Summarize(ctx, previous, trimmed)
	return fallback
}

// Delete removes the conversation row. Deleting an unknown conversation is not
// an error.
func (m *Manager) Delete(ctx context.Context, conversationID, userID uuid.UUID) error {
	state, err := m.find(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}
	if err := m.repo.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("delete conversation state: %w", err)
	}
	return nil
}
