package protocol

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventSuggestion EventType = "suggestion"
	EventDone       EventType = "done"
	// EventDebug is emitted by the runner itself, never accepted from upstream.
	EventDebug EventType = "debug"
	// EventToolCall is consumed by the runner and never forwarded.
	EventToolCall EventType = "tool_call"
)

type Action struct {
	Type   ActionType        `json:"type" validate:"required"`
	Params map[string]string `json:"params,omitempty"`
}

type Suggestion struct {
	Rank             int              `json:"rank" validate:"min=1,max=5"`
	Title            string           `json:"title" validate:"required,max=120"`
	Subtitle         string           `json:"subtitle" validate:"required,max=240,single_sentence"`
	NormalizedAction NormalizedAction `json:"normalized_action" validate:"required"`
	Grounding        Grounding        `json:"grounding" validate:"required,oneof=scripture life_context reading highlight note conversation general"`
	TargetLabel      string           `json:"target_label" validate:"required,max=120"`
	Action           Action           `json:"action"`
	EvidenceIDs      []string         `json:"evidence_ids" validate:"min=1,dive,required"`
	Confidence       float64          `json:"confidence" validate:"gte=0,lte=1"`
}

type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name" validate:"required"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// DebugSummary is the diagnostic line sent right before done in debug mode.
type DebugSummary struct {
	Accepted int                `json:"accepted"`
	Drops    map[DropReason]int `json:"drops"`
	Lines    int                `json:"lines"`
}

// Event is one unit of the caller-facing stream. Exactly one payload pointer
// is set for suggestion, debug and tool_call events; done has none.
type Event struct {
	Type       EventType
	Suggestion *Suggestion
	Debug      *DebugSummary
	ToolCall   *ToolCall
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventSuggestion:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			*Suggestion
		}{e.Type, e.Suggestion})
	case EventDebug:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			*DebugSummary
		}{e.Type, e.Debug})
	case EventToolCall:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			*ToolCall
		}{e.Type, e.ToolCall})
	case EventDone:
		return []byte(`{"type":"done"}`), nil
	}
	return nil, fmt.Errorf("unknown event type %q", e.Type)
}

// Encode renders e as one NDJSON line including the trailing newline.
func Encode(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
