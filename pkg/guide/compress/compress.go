package compress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"unicode/utf8"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/guide/plan"
	"devotion-guide-be/pkg/guide/protocol"
)

const (
	DefaultMaxChars        = 6000
	DefaultMaxPreviewRunes = 240
	DefaultMaxLabelRunes   = 60
	DefaultMinPreviewRunes = 40

	charsPerToken = 4.0
)

var ErrBudgetTooSmall = errors.New("context budget cannot hold plan and actions")

// groupKeys are the short keys of each source inside "c".
var groupKeys = map[candidate.Source]string{
	candidate.SourceLifeContext:         "lc",
	candidate.SourceReadingSession:      "rd",
	candidate.SourceHighlight:           "hl",
	candidate.SourceNote:                "nt",
	candidate.SourceConversationSummary: "cv",
}

type PlanView struct {
	Intent     plan.Intent     `json:"in"`
	Entrypoint plan.Entrypoint `json:"ep"`
	Range      plan.TimeRange  `json:"rg"`
	Scope      string          `json:"sc,omitempty"`
	ScopeRef   string          `json:"rf,omitempty"`
	Keywords   []string        `json:"kw,omitempty"`
}

type Scores struct {
	Recency   *float64 `json:"rc,omitempty"`
	Semantic  *float64 `json:"se,omitempty"`
	Temporal  *float64 `json:"tm,omitempty"`
	Scope     *float64 `json:"sm,omitempty"`
	Freshness *float64 `json:"fr,omitempty"`
}

// Item is one candidate in abbreviated form.
type Item struct {
	ID       string  `json:"i"`
	Label    string  `json:"l"`
	Preview  string  `json:"v,omitempty"`
	RefKey   string  `json:"r,omitempty"`
	Kind     string  `json:"k,omitempty"`
	Progress int     `json:"pg,omitempty"`
	Count    int     `json:"n,omitempty"`
	Date     string  `json:"d,omitempty"`
	Scores   *Scores `json:"s,omitempty"`
}

// Payload is the token-budgeted context shown to the model. Only the fields
// with short JSON keys are serialized; the rest is bookkeeping for the caller.
type Payload struct {
	Plan    PlanView              `json:"p"`
	Actions []protocol.ActionType `json:"a"`
	Context map[string][]Item     `json:"c"`
	Elided  map[string]int        `json:"x,omitempty"`

	AllowedEvidenceIDs []string              `json:"-"`
	AllowedActionTypes []protocol.ActionType `json:"-"`
	Chars              int                   `json:"-"`
	EstimatedTokens    int                   `json:"-"`
}

// JSON renders the payload exactly as it is measured against the budget.
func (p *Payload) JSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// AllowList closes the validator over what this payload shows.
func (p *Payload) AllowList() protocol.AllowList {
	return protocol.NewAllowList(p.AllowedEvidenceIDs, p.AllowedActionTypes)
}

type Compressor struct {
	MaxChars        int
	MaxPreviewRunes int
	MaxLabelRunes   int
	MinPreviewRunes int
}

func NewCompressor(maxChars, maxPreviewRunes int) *Compressor {
	c := &Compressor{
		MaxChars:        maxChars,
		MaxPreviewRunes: maxPreviewRunes,
		MaxLabelRunes:   DefaultMaxLabelRunes,
		MinPreviewRunes: DefaultMinPreviewRunes,
	}
	if c.MaxChars <= 0 {
		c.MaxChars = DefaultMaxChars
	}
	if c.MaxPreviewRunes <= 0 {
		c.MaxPreviewRunes = DefaultMaxPreviewRunes
	}
	if c.MinPreviewRunes > c.MaxPreviewRunes {
		c.MinPreviewRunes = c.MaxPreviewRunes
	}
	return c
}

type entry struct {
	group    string
	cand     candidate.Candidate
	priority float64
	order    int
	elided   bool
}

// Compress projects deduped candidates into a payload of at most MaxChars
// characters. Previews shrink first; when that is not enough whole items are
// elided lowest priority first and counted under "x". Plan and actions are
// never cut.
func (c *Compressor) Compress(cands []candidate.Candidate, p plan.Plan, enabledActions []string) (*Payload, error) {
	actions := protocol.ResolveActionTypes(enabledActions)

	entries := make([]*entry, 0, len(cands))
	for i, cand := range cands {
		key, ok := groupKeys[cand.Source]
		if !ok {
			continue
		}
		entries = append(entries, &entry{group: key, cand: cand, priority: cand.Priority(), order: i})
	}
	// Within a group the model reads strongest first.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority > entries[j].priority
	})

	view := PlanView{
		Intent:     p.Intent,
		Entrypoint: p.Entrypoint,
		Range:      p.Range,
		Scope:      p.Scope,
		ScopeRef:   p.ScopeRef,
		Keywords:   p.Keywords,
	}

	previewRunes := c.MaxPreviewRunes
	for {
		payload := c.build(view, actions, entries, previewRunes)
		b, err := payload.JSON()
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		chars := utf8.RuneCount(b)
		if chars <= c.MaxChars {
			payload.Chars = chars
			payload.EstimatedTokens = int(math.Ceil(float64(chars) / charsPerToken))
			return payload, nil
		}

		if previewRunes > c.MinPreviewRunes {
			previewRunes = max(previewRunes/2, c.MinPreviewRunes)
			continue
		}
		if !elideWeakest(entries) {
			return nil, fmt.Errorf("%w: %d chars over a %d limit", ErrBudgetTooSmall, chars, c.MaxChars)
		}
	}
}

func (c *Compressor) build(view PlanView, actions []protocol.ActionType, entries []*entry, previewRunes int) *Payload {
	payload := &Payload{
		Plan:               view,
		Actions:            actions,
		Context:            make(map[string][]Item),
		AllowedActionTypes: actions,
	}
	for _, e := range entries {
		if e.elided {
			if payload.Elided == nil {
				payload.Elided = make(map[string]int)
			}
			payload.Elided[e.group]++
			continue
		}
		payload.Context[e.group] = append(payload.Context[e.group], c.item(e.cand, previewRunes))
		payload.AllowedEvidenceIDs = append(payload.AllowedEvidenceIDs, e.cand.ID)
	}
	return payload
}

func (c *Compressor) item(cand candidate.Candidate, previewRunes int) Item {
	it := Item{
		ID:      cand.ID,
		Label:   candidate.Truncate(cand.Label, c.MaxLabelRunes),
		Preview: candidate.Preview(cand.Preview, previewRunes),
		RefKey:  cand.Metadata.RefKey(),
		Scores:  scores(cand.Features),
	}
	if cand.Features.CreatedAt != nil {
		it.Date = cand.Features.CreatedAt.UTC().Format("2006-01-02")
	}

	m := cand.Metadata
	switch {
	case m.LifeContext != nil:
		it.Kind = m.LifeContext.Kind
	case m.Note != nil && m.Note.Kind != entity.NoteKindJournal:
		it.Kind = m.Note.Kind
	case m.Reading != nil:
		it.Progress = int(math.Round(m.Reading.Progress * 100))
		it.Count = m.Reading.Sessions
	case m.Summary != nil:
		it.Count = m.Summary.TurnCount
	}
	return it
}

func scores(f candidate.Features) *Scores {
	s := &Scores{
		Recency:   round2(f.RecencyScore),
		Semantic:  round2(f.SemanticScore),
		Temporal:  round2(f.TemporalMatch),
		Scope:     round2(f.ScopeMatch),
		Freshness: round2(f.Freshness),
	}
	if *s == (Scores{}) {
		return nil
	}
	return s
}

func round2(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}

// elideWeakest marks the lowest priority live entry as elided. Among equal
// priorities the one that came later in the input goes first.
func elideWeakest(entries []*entry) bool {
	var weakest *entry
	for _, e := range entries {
		if e.elided {
			continue
		}
		if weakest == nil || e.priority < weakest.priority || (e.priority == weakest.priority && e.order > weakest.order) {
			weakest = e
		}
	}
	if weakest == nil {
		return false
	}
	weakest.elided = true
	return true
}
