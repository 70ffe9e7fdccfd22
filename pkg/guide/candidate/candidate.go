package candidate

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Source identifies which signal table a candidate was read from.
type Source string

const (
	SourceLifeContext         Source = "life_context"
	SourceReadingSession      Source = "reading_session"
	SourceHighlight           Source = "highlight"
	SourceNote                Source = "note"
	SourceConversationSummary Source = "conversation_summary"
)

// AllSources lists the fixed candidate sources in prompt order.
var AllSources = []Source{
	SourceLifeContext,
	SourceReadingSession,
	SourceHighlight,
	SourceNote,
	SourceConversationSummary,
}

func (s Source) Valid() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// idPrefix is the leading segment of every candidate id for the source.
func (s Source) idPrefix() string {
	return strings.ReplaceAll(string(s), "_", "-")
}

// Features carries the optional ranking scores of a candidate.
// A nil field means the fetcher had no opinion, which is different from zero.
type Features struct {
	RecencyScore  *float64   `json:"recencyScore,omitempty"`
	SemanticScore *float64   `json:"semanticScore,omitempty"`
	TemporalMatch *float64   `json:"temporalMatch,omitempty"`
	ScopeMatch    *float64   `json:"scopeMatch,omitempty"`
	Freshness     *float64   `json:"freshness,omitempty"`
	CreatedAt     *time.Time `json:"createdAt,omitempty"`
}

// Metadata is a tagged variant: exactly one field is set and it must match the
// candidate source.
type Metadata struct {
	LifeContext *LifeContextMeta `json:"lifeContext,omitempty"`
	Reading     *ReadingMeta     `json:"reading,omitempty"`
	Highlight   *HighlightMeta   `json:"highlight,omitempty"`
	Note        *NoteMeta        `json:"note,omitempty"`
	Summary     *SummaryMeta     `json:"summary,omitempty"`
}

type LifeContextMeta struct {
	Kind string `json:"kind"`
}

type ReadingMeta struct {
	RefKey   string  `json:"refKey"`
	Progress float64 `json:"progress"`
	Sessions int     `json:"sessions,omitempty"`
}

type HighlightMeta struct {
	RefKey string `json:"refKey"`
	Color  string `json:"color,omitempty"`
}

type NoteMeta struct {
	NoteID string `json:"noteId"`
	Kind   string `json:"kind,omitempty"`
	RefKey string `json:"refKey,omitempty"`
}

type SummaryMeta struct {
	ConversationID string `json:"conversationId"`
	TurnCount      int    `json:"turnCount"`
}

// RefKey returns the scripture reference attached to the metadata, if any.
func (m Metadata) RefKey() string {
	switch {
	case m.Reading != nil:
		return m.Reading.RefKey
	case m.Highlight != nil:
		return m.Highlight.RefKey
	case m.Note != nil:
		return m.Note.RefKey
	}
	return ""
}

func (m Metadata) variants() int {
	n := 0
	if m.LifeContext != nil {
		n++
	}
	if m.Reading != nil {
		n++
	}
	if m.Highlight != nil {
		n++
	}
	if m.Note != nil {
		n++
	}
	if m.Summary != nil {
		n++
	}
	return n
}

func (m Metadata) matches(s Source) bool {
	switch s {
	case SourceLifeContext:
		return m.LifeContext != nil
	case SourceReadingSession:
		return m.Reading != nil
	case SourceHighlight:
		return m.Highlight != nil
	case SourceNote:
		return m.Note != nil
	case SourceConversationSummary:
		return m.Summary != nil
	}
	return false
}

// Candidate is one normalized unit of behavioral signal.
type Candidate struct {
	ID       string   `json:"id"`
	Source   Source   `json:"source"`
	Label    string   `json:"label"`
	Preview  string   `json:"preview"`
	Metadata Metadata `json:"metadata"`
	Features Features `json:"features"`
}

var (
	ErrInvalidCandidate = errors.New("invalid candidate")
)

// NewID builds the stable id `source:ownerId:discriminator`.
func NewID(source Source, ownerID, discriminator string) string {
	return fmt.Sprintf("%s:%s:%s", source.idPrefix(), ownerID, discriminator)
}

// Validate checks the boundary invariants of a candidate.
func (c Candidate) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidCandidate)
	}
	if !c.Source.Valid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidCandidate, c.Source)
	}
	if !strings.HasPrefix(c.ID, c.Source.idPrefix()+":") {
		return fmt.Errorf("%w: id %q does not belong to source %s", ErrInvalidCandidate, c.ID, c.Source)
	}
	if c.Metadata.variants() > 1 {
		return fmt.Errorf("%w: %s carries more than one metadata variant", ErrInvalidCandidate, c.ID)
	}
	if c.Metadata.variants() == 1 && !c.Metadata.matches(c.Source) {
		return fmt.Errorf("%w: %s metadata does not match source %s", ErrInvalidCandidate, c.ID, c.Source)
	}
	for name, v := range c.Features.scores() {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%w: %s %s out of range", ErrInvalidCandidate, c.ID, name)
		}
	}
	return nil
}

func (f Features) scores() map[string]*float64 {
	return map[string]*float64{
		"recencyScore":  f.RecencyScore,
		"semanticScore": f.SemanticScore,
		"temporalMatch": f.TemporalMatch,
		"scopeMatch":    f.ScopeMatch,
		"freshness":     f.Freshness,
	}
}

// Priority is the single number used when the compressor must elide items.
// Missing scores count as zero.
func (c Candidate) Priority() float64 {
	weights := []struct {
		v *float64
		w float64
	}{
		{c.Features.SemanticScore, 0.4},
		{c.Features.RecencyScore, 0.25},
		{c.Features.ScopeMatch, 0.15},
		{c.Features.TemporalMatch, 0.1},
		{c.Features.Freshness, 0.1},
	}
	total := 0.0
	for _, s := range weights {
		if s.v != nil {
			total += *s.v * s.w
		}
	}
	return total
}

// Score returns a pointer to v, for building Features literals.
func Score(v float64) *float64 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return &v
}
