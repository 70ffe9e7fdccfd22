package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/internal/pkg/logger"
	"devotion-guide-be/internal/repository/contract"
	"devotion-guide-be/internal/repository/specification"
	"devotion-guide-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	contract.ConversationStateRepository
	rows  map[uuid.UUID]entity.ConversationState
	saves int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[uuid.UUID]entity.ConversationState{}}
}

func (r *memoryRepo) Save(_ context.Context, state *entity.ConversationState) error {
	r.saves++
	cp := *state
	cp.RecentMessages = append([]entity.ConversationMessage(nil), state.RecentMessages...)
	r.rows[state.ConversationId] = cp
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.rows, id)
	return nil
}

func (r *memoryRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.ConversationState, error) {
	for _, s := range specs {
		if byID, ok := s.(specification.ByConversationID); ok {
			row, found := r.rows[byID.ConversationID]
			if !found {
				return nil, nil
			}
			cp := row
			cp.RecentMessages = append([]entity.ConversationMessage(nil), row.RecentMessages...)
			return &cp, nil
		}
	}
	return nil, errors.New("unsupported query")
}

type fakeChat struct {
	llm.LLMProvider
	reply   string
	err     error
	calls   int
	history []llm.Message
}

func (f *fakeChat) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	f.calls++
	f.history = history
	return f.reply, f.err
}

func turn(conv, user uuid.UUID, i int) TurnInput {
	return TurnInput{
		ConversationID:   conv,
		UserID:           user,
		UserMessage:      fmt.Sprintf("question %d about Psalm 23", i),
		AssistantMessage: fmt.Sprintf("answer %d", i),
	}
}

func TestRecordTurn_WindowTrimming(t *testing.T) {
	tests := []struct {
		name   string
		window int
		turns  int
	}{
		{"window of four", 4, 10},
		{"odd window", 5, 7},
		{"window never reached", 12, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryRepo()
			m := NewManager(repo, ExtractiveSummarizer{}, tt.window, logger.NewNopLogger())
			conv, user := uuid.New(), uuid.New()

			trimmed := false
			for i := 1; i <= tt.turns; i++ {
				state, err := m.RecordTurn(context.Background(), turn(conv, user, i))
				require.NoError(t, err)

				assert.LessOrEqual(t, len(state.RecentMessages), tt.window)
				assert.Equal(t, i, state.TurnCount)
				if 2*i > tt.window {
					trimmed = true
				}
				if trimmed {
					assert.NotEmpty(t, state.Summary, "turn %d", i)
				} else {
					assert.Empty(t, state.Summary, "turn %d", i)
				}
			}

			stored, err := m.Load(context.Background(), conv, user)
			require.NoError(t, err)
			last := stored.RecentMessages[len(stored.RecentMessages)-1]
			assert.Equal(t, RoleAssistant, last.Role)
			assert.Equal(t, fmt.Sprintf("answer %d", tt.turns), last.Content)
		})
	}
}

func TestRecordTurn_UsesModelSummary(t *testing.T) {
	repo := newMemoryRepo()
	chat := &fakeChat{reply: "  The user is reading Psalm 23 and asked about rest.  "}
	m := NewManager(repo, NewModelSummarizer(chat, "small", 600), 2, logger.NewNopLogger())
	conv, user := uuid.New(), uuid.New()

	_, err := m.RecordTurn(context.Background(), turn(conv, user, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, chat.calls)

	state, err := m.RecordTurn(context.Background(), turn(conv, user, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, chat.calls)
	assert.Equal(t, "The user is reading Psalm 23 and asked about rest.", state.Summary)
	require.Len(t, chat.history, 2)
	assert.Contains(t, chat.history[1].Content, "question 1 about Psalm 23")
	assert.NotContains(t, chat.history[1].Content, "question 2")
}

func TestRecordTurn_FallsBackWhenSummaryModelFails(t *testing.T) {
	for _, chat := range []*fakeChat{
		{err: errors.New("connection refused")},
		{reply: "   "},
	} {
		m := NewManager(newMemoryRepo(), NewModelSummarizer(chat, "", 0), 2, logger.NewNopLogger())
		conv, user := uuid.New(), uuid.New()

		for i := 1; i <= 3; i++ {
			_, err := m.RecordTurn(context.Background(), turn(conv, user, i))
			require.NoError(t, err)
		}
		state, err := m.Load(context.Background(), conv, user)
		require.NoError(t, err)
		assert.Contains(t, state.Summary, "question 2 about Psalm 23")
		assert.Len(t, state.RecentMessages, 2)
	}
}

func TestRecordTurn_Validation(t *testing.T) {
	repo := newMemoryRepo()
	m := NewManager(repo, nil, 0, logger.NewNopLogger())
	conv, owner := uuid.New(), uuid.New()

	_, err := m.RecordTurn(context.Background(), TurnInput{ConversationID: conv, UserID: owner, UserMessage: "  "})
	assert.ErrorIs(t, err, ErrEmptyTurn)
	assert.Equal(t, 0, repo.saves)

	_, err = m.RecordTurn(context.Background(), TurnInput{ConversationID: conv, UserID: owner, UserMessage: "hi"})
	require.NoError(t, err)

	_, err = m.RecordTurn(context.Background(), turn(conv, uuid.New(), 2))
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, DefaultWindowSize, m.WindowSize())
}

func TestLoadAndDelete(t *testing.T) {
	repo := newMemoryRepo()
	m := NewManager(repo, nil, 4, logger.NewNopLogger())
	conv, owner := uuid.New(), uuid.New()

	_, err := m.Load(context.Background(), conv, owner)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.Delete(context.Background(), conv, owner))

	_, err = m.RecordTurn(context.Background(), turn(conv, owner, 1))
	require.NoError(t, err)

	assert.ErrorIs(t, m.Delete(context.Background(), conv, uuid.New()), ErrAccessDenied)
	_, err = m.Load(context.Background(), conv, uuid.New())
	assert.ErrorIs(t, err, ErrAccessDenied)

	require.NoError(t, m.Delete(context.Background(), conv, owner))
	_, err = m.Load(context.Background(), conv, owner)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordTurn_TimestampsUseClock(t *testing.T) {
	m := NewManager(newMemoryRepo(), nil, 4, logger.NewNopLogger())
	fixed := time.Date(2026, 4, 5, 6, 7, 8, 0, time.FixedZone("WIB", 7*3600))
	m.now = func() time.Time { return fixed }

	state, err := m.RecordTurn(context.Background(), TurnInput{ConversationID: uuid.New(), UserID: uuid.New(), UserMessage: "hello"})
	require.NoError(t, err)
	require.Len(t, state.RecentMessages, 1)
	assert.Equal(t, fixed.UTC(), state.RecentMessages[0].Timestamp)
	assert.Equal(t, RoleUser, state.RecentMessages[0].Role)
}

func TestExtractiveSummarizer(t *testing.T) {
	s := ExtractiveSummarizer{MaxRunes: 80}

	out, err := s.Summarize(context.Background(), "", []entity.ConversationMessage{{Role: RoleUser, Content: "   "}})
	require.NoError(t, err)
	assert.Equal(t, "Earlier conversation of 1 messages.", out)

	long := []entity.ConversationMessage{
		{Role: RoleUser, Content: strings.Repeat("old words ", 20)},
		{Role: RoleAssistant, Content: "newest reply mentions JHN:3"},
	}
	out, err = s.Summarize(context.Background(), "prior summary", long)
	require.NoError(t, err)
	assert.LessOrEqual(t, utf8.RuneCountInString(out), 80)
	assert.True(t, strings.HasPrefix(out, "…"))
	assert.True(t, strings.HasSuffix(out, "assistant: newest reply mentions JHN:3"))
}
