package conversation

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/llm"
)

const (
	DefaultSummaryRunes = 1200
	extractiveLineRunes = 160
)

// Summarizer folds messages that left the window into the running summary.
type Summarizer interface {
	Summarize(ctx context.Context, previous string, trimmed []entity.ConversationMessage) (string, error)
}

const summaryPrompt = `You maintain the running summary of a devotional guidance conversation.
Merge the previous summary with the messages that are leaving the window.
Keep names of passages, prayer requests, commitments and open questions.
Write plain prose in the third person, at most %d characters. Output only the summary.`

// ModelSummarizer asks the lightweight summary model for a new summary.
type ModelSummarizer struct {
	provider llm.LLMProvider
	model    string
	maxRunes int
}

func NewModelSummarizer(provider llm.LLMProvider, model string, maxRunes int) *ModelSummarizer {
	if maxRunes <= 0 {
		maxRunes = DefaultSummaryRunes
	}
	return &ModelSummarizer{provider: provider, model: model, maxRunes: maxRunes}
}

func (s *ModelSummarizer) Summarize(ctx context.Context, previous string, trimmed []entity.ConversationMessage) (string, error) {
	var b strings.Builder
	if previous != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(previous)
		b.WriteString("\n\n")
	}
	b.WriteString("Messages leaving the window:\n")
	for _, msg := range trimmed {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, candidate.Redact(msg.Content))
	}

	opts := []llm.Option{llm.WithTemperature(0.2), llm.WithMaxTokens(s.maxRunes / 3)}
	if s.model != "" {
		opts = append(opts, llm.WithModel(s.model))
	}
	out, err := s.provider.Chat(ctx, []llm.Message{
		{Role: "system", Content: fmt.Sprintf(summaryPrompt, s.maxRunes)},
		{Role: "user", Content: b.String()},
	}, opts...)
	if err != nil {
		return "", fmt.Errorf("summary model: %w", err)
	}
	return candidate.Truncate(strings.TrimSpace(out), s.maxRunes), nil
}

// ExtractiveSummarizer keeps one clipped line per trimmed message and drops
// the oldest text once MaxRunes is exceeded. It never fails and never returns
// an empty summary for a non-empty input.
type ExtractiveSummarizer struct {
	MaxRunes int
}

func (s ExtractiveSummarizer) Summarize(_ context.Context, previous string, trimmed []entity.ConversationMessage) (string, error) {
	maxRunes := s.MaxRunes
	if maxRunes <= 0 {
		maxRunes = DefaultSummaryRunes
	}

	lines := make([]string, 0, len(trimmed)+1)
	if p := strings.TrimSpace(previous); p != "" {
		lines = append(lines, p)
	}
	for _, msg := range trimmed {
		content := candidate.Preview(msg.Content, extractiveLineRunes)
		if content == "" {
			continue
		}
		lines = append(lines, msg.Role+": "+content)
	}
	if len(lines) == 0 {
		return fmt.Sprintf("Earlier conversation of %d messages.", len(trimmed)), nil
	}
	return keepTail(strings.Join(lines, "\n"), maxRunes), nil
}

// keepTail keeps the newest max runes, marking the cut with a leading ellipsis.
func keepTail(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return candidate.Ellipsis + strings.TrimLeft(string(runes[len(runes)-max+1:]), " \n")
}
