package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

// ActionType is what the client does when a suggestion is tapped.
type ActionType string

const (
	ActionOpenPassage             ActionType = "open_passage"
	ActionContinueReading         ActionType = "continue_reading"
	ActionStartShortReading       ActionType = "start_short_reading"
	ActionOpenConversationSummary ActionType = "open_conversation_summary"
	ActionOpenConversation        ActionType = "open_conversation"
	ActionOpenNote                ActionType = "open_note"
	ActionOpenHighlight           ActionType = "open_highlight"
	ActionStartReflection         ActionType = "start_reflection"
	ActionOpenJournal             ActionType = "open_journal"
	ActionStartPrayer             ActionType = "start_prayer"
)

// Vocabulary is the fixed set of action types the product understands.
var Vocabulary = []ActionType{
	ActionOpenPassage,
	ActionContinueReading,
	ActionStartShortReading,
	ActionOpenConversationSummary,
	ActionOpenConversation,
	ActionOpenNote,
	ActionOpenHighlight,
	ActionStartReflection,
	ActionOpenJournal,
	ActionStartPrayer,
}

func (a ActionType) Known() bool {
	for _, v := range Vocabulary {
		if a == v {
			return true
		}
	}
	return false
}

// NormalizedAction is the model's classification of a suggestion.
type NormalizedAction string

const (
	ReadScripture           NormalizedAction = "read_scripture"
	ResumeGuideConversation NormalizedAction = "resume_guide_conversation"
	StartConversation       NormalizedAction = "start_conversation"
	RevisitNote             NormalizedAction = "revisit_note"
	RevisitHighlight        NormalizedAction = "revisit_highlight"
	Reflect                 NormalizedAction = "reflect"
	Pray                    NormalizedAction = "pray"
)

const (
	ParamRefKey     = "ref_key"
	ParamArtifactID = "artifact_id"
	ParamPrompt     = "prompt"
	ParamNoteID     = "note_id"
)

// ActionRule binds a normalized action to the action types that may carry it
// and the one parameter each such action needs.
type ActionRule struct {
	Types         []ActionType
	RequiredParam string
}

var actionRules = map[NormalizedAction]ActionRule{
	ReadScripture: {
		Types:         []ActionType{ActionOpenPassage, ActionContinueReading, ActionStartShortReading},
		RequiredParam: ParamRefKey,
	},
	ResumeGuideConversation: {
		Types:         []ActionType{ActionOpenConversationSummary},
		RequiredParam: ParamArtifactID,
	},
	StartConversation: {
		Types:         []ActionType{ActionOpenConversation},
		RequiredParam: ParamPrompt,
	},
	RevisitNote: {
		Types:         []ActionType{ActionOpenNote},
		RequiredParam: ParamNoteID,
	},
	RevisitHighlight: {
		Types:         []ActionType{ActionOpenHighlight},
		RequiredParam: ParamRefKey,
	},
	Reflect: {
		Types:         []ActionType{ActionStartReflection, ActionOpenJournal},
		RequiredParam: ParamPrompt,
	},
	Pray: {
		Types: []ActionType{ActionStartPrayer},
	},
}

// Rule returns the mapping entry for a normalized action.
func Rule(action NormalizedAction) (ActionRule, bool) {
	r, ok := actionRules[action]
	return r, ok
}

// NormalizedActions lists the mapping table keys in a stable order.
func NormalizedActions() []NormalizedAction {
	return []NormalizedAction{ReadScripture, ResumeGuideConversation, StartConversation, RevisitNote, RevisitHighlight, Reflect, Pray}
}

func (r ActionRule) allows(t ActionType) bool {
	for _, allowed := range r.Types {
		if allowed == t {
			return true
		}
	}
	return false
}

// ResolveActionTypes intersects the caller-enabled actions with the vocabulary.
// An empty intersection falls back to the whole vocabulary.
func ResolveActionTypes(enabled []string) []ActionType {
	seen := make(map[ActionType]bool, len(enabled))
	var out []ActionType
	for _, raw := range enabled {
		t := ActionType(strings.TrimSpace(raw))
		if t.Known() && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return append([]ActionType(nil), Vocabulary...)
	}
	return out
}

// Grounding says which kind of evidence a suggestion leans on.
type Grounding string

const (
	GroundingScripture    Grounding = "scripture"
	GroundingLifeContext  Grounding = "life_context"
	GroundingReading      Grounding = "reading"
	GroundingHighlight    Grounding = "highlight"
	GroundingNote         Grounding = "note"
	GroundingConversation Grounding = "conversation"
	GroundingGeneral      Grounding = "general"
)

var refKeyPattern = regexp.MustCompile(`^[1-4]?[A-Z]{2,3}:([1-9][0-9]{0,2})(?::([1-9][0-9]{0,2})(?:-([1-9][0-9]{0,2}))?)?$`)

// ValidRefKey reports whether s is BOOK:CHAPTER[:VERSE[-VERSE]] with an
// ascending verse range.
func ValidRefKey(s string) bool {
	m := refKeyPattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	if m[2] != "" && m[3] != "" {
		from, _ := strconv.Atoi(m[2])
		to, _ := strconv.Atoi(m[3])
		return to >= from
	}
	return true
}
