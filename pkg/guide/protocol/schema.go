package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// DropReason names why a streamed line was discarded.
type DropReason string

const (
	DropInvalidJSON             DropReason = "invalid_json"
	DropUnknownEventType        DropReason = "unknown_event_type"
	DropSchemaViolation         DropReason = "schema_violation"
	DropInvalidRank             DropReason = "invalid_rank"
	DropMultiSentenceSubtitle   DropReason = "multi_sentence_subtitle"
	DropInvalidConfidence       DropReason = "invalid_confidence"
	DropMissingEvidence         DropReason = "missing_evidence"
	DropUnknownEvidenceID       DropReason = "unknown_evidence_id"
	DropUnknownNormalizedAction DropReason = "unknown_normalized_action"
	DropActionMappingMismatch   DropReason = "action_mapping_mismatch"
	DropActionNotAllowed        DropReason = "action_not_allowed"
	DropMissingActionParam      DropReason = "missing_action_param"
	DropInvalidRefKey           DropReason = "invalid_ref_key"
	DropMaxSuggestionsReached   DropReason = "max_suggestions_reached"
	DropInvalidSuggestionCount  DropReason = "invalid_suggestion_count"
	DropDuplicateDone           DropReason = "duplicate_done"
	DropAfterDone               DropReason = "after_done"
	DropToolCallFailed          DropReason = "tool_call_failed"
)

// AllowList is the closed set of evidence ids and action types shown to the
// model in one turn.
type AllowList struct {
	evidence map[string]struct{}
	actions  map[ActionType]struct{}
}

func NewAllowList(evidenceIDs []string, actionTypes []ActionType) AllowList {
	a := AllowList{
		evidence: make(map[string]struct{}, len(evidenceIDs)),
		actions:  make(map[ActionType]struct{}, len(actionTypes)),
	}
	for _, id := range evidenceIDs {
		a.evidence[id] = struct{}{}
	}
	for _, t := range actionTypes {
		a.actions[t] = struct{}{}
	}
	return a
}

func (a AllowList) HasEvidence(id string) bool {
	_, ok := a.evidence[id]
	return ok
}

// AllowsAction is true for every type when no action types were given.
func (a AllowList) AllowsAction(t ActionType) bool {
	if len(a.actions) == 0 {
		return true
	}
	_, ok := a.actions[t]
	return ok
}

// Schema holds the compiled struct validator. Build it once and Bind it per request.
type Schema struct {
	validate *validator.Validate
}

func NewSchema() *Schema {
	v := validator.New()
	_ = v.RegisterValidation("single_sentence", func(fl validator.FieldLevel) bool {
		return SentenceCount(fl.Field().String()) <= 1
	})
	return &Schema{validate: v}
}

// Bind returns a validator closed over one request's allow-list.
func (s *Schema) Bind(allow AllowList) *Validator {
	return &Validator{schema: s, allow: allow}
}

type Validator struct {
	schema *Schema
	allow  AllowList
}

type envelope struct {
	Type EventType `json:"type"`
}

// Check parses and validates one line. It never fails hard: a rejected line
// comes back as a drop reason.
func (v *Validator) Check(line []byte) (Event, DropReason) {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Event{}, DropInvalidJSON
	}

	switch env.Type {
	case EventDone:
		return Event{Type: EventDone}, ""
	case EventSuggestion:
		s, reason := v.suggestion(line)
		if reason != "" {
			return Event{}, reason
		}
		return Event{Type: EventSuggestion, Suggestion: s}, ""
	case EventToolCall:
		var call struct {
			Type EventType `json:"type"`
			ToolCall
		}
		if err := json.Unmarshal(line, &call); err != nil {
			return Event{}, DropSchemaViolation
		}
		if err := v.schema.validate.Struct(call.ToolCall); err != nil {
			return Event{}, DropSchemaViolation
		}
		return Event{Type: EventToolCall, ToolCall: &call.ToolCall}, ""
	}
	return Event{}, DropUnknownEventType
}

func (v *Validator) suggestion(line []byte) (*Suggestion, DropReason) {
	var raw struct {
		Type EventType `json:"type"`
		Suggestion
	}
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, DropSchemaViolation
	}
	s := raw.Suggestion

	if err := v.schema.validate.Struct(s); err != nil {
		return nil, fieldReason(err)
	}

	rule, ok := Rule(s.NormalizedAction)
	if !ok {
		return nil, DropUnknownNormalizedAction
	}
	if !rule.allows(s.Action.Type) {
		return nil, DropActionMappingMismatch
	}
	if !v.allow.AllowsAction(s.Action.Type) {
		return nil, DropActionNotAllowed
	}
	if rule.RequiredParam != "" {
		value := strings.TrimSpace(s.Action.Params[rule.RequiredParam])
		if value == "" {
			return nil, DropMissingActionParam
		}
		if rule.RequiredParam == ParamRefKey && !ValidRefKey(value) {
			return nil, DropInvalidRefKey
		}
	}

	for _, id := range s.EvidenceIDs {
		if !v.allow.HasEvidence(id) {
			return nil, DropUnknownEvidenceID
		}
	}
	return &s, ""
}

func fieldReason(err error) DropReason {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return DropSchemaViolation
	}
	fe := verrs[0]
	field := fe.StructField()
	if strings.HasPrefix(field, "EvidenceIDs") {
		return DropMissingEvidence
	}
	switch field {
	case "Rank":
		return DropInvalidRank
	case "Subtitle":
		if fe.Tag() == "single_sentence" {
			return DropMultiSentenceSubtitle
		}
	case "Confidence":
		return DropInvalidConfidence
	}
	return DropSchemaViolation
}

// SentenceCount counts sentence-terminal marks. Every mark counts, so "?!"
// is two; a period between digits is not a terminal.
func SentenceCount(s string) int {
	runes := []rune(strings.TrimSpace(s))
	count := 0
	for i, r := range runes {
		if !isTerminal(r) {
			continue
		}
		if r == '.' && i > 0 && i+1 < len(runes) && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			continue
		}
		count++
	}
	return count
}

func isTerminal(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。', '！', '？':
		return true
	}
	return false
}
