package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"devotion-guide-be/internal/entity"
	"devotion-guide-be/pkg/guide/candidate"
	"devotion-guide-be/pkg/guide/plan"
	"devotion-guide-be/pkg/guide/prompt"
	"devotion-guide-be/pkg/guide/protocol"

	"github.com/google/uuid"
)

type Stage string

const (
	StageIngress           Stage = "INGRESS"
	StageContextCandidates Stage = "CONTEXT_CANDIDATES"
	StagePromptAssembly    Stage = "PROMPT_ASSEMBLY"
	StageModelCall         Stage = "MODEL_CALL"
)

// Order is the fixed execution order.
var Order = []Stage{StageIngress, StageContextCandidates, StagePromptAssembly, StageModelCall}

var successors = map[Stage]Stage{
	StageIngress:           StageContextCandidates,
	StageContextCandidates: StagePromptAssembly,
	StagePromptAssembly:    StageModelCall,
}

// Next returns the stage that follows s. MODEL_CALL has no successor.
func Next(s Stage) (Stage, bool) {
	n, ok := successors[s]
	return n, ok
}

func (s Stage) index() int {
	for i, o := range Order {
		if o == s {
			return i
		}
	}
	return -1
}

var ErrInvalidStage = errors.New("invalid pipeline stage")

func ParseStage(raw string) (Stage, error) {
	s := Stage(strings.ToUpper(strings.TrimSpace(raw)))
	if s.index() < 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, raw)
	}
	return s, nil
}

type Status string

const (
	StatusRunning   Status = "running"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// RunParams are the original inputs of a run. Together with the persisted
// artifacts they are all a resumed run reads.
type RunParams struct {
	UserID         uuid.UUID
	ConversationID *uuid.UUID
	Entrypoint     plan.Entrypoint
	Message        string
	History        []entity.ConversationMessage
	EnabledActions []string
	Debug          bool
}

func paramsFromRun(run *entity.DebugRun) RunParams {
	return RunParams{
		UserID:         run.TargetUserId,
		ConversationID: run.ConversationId,
		Entrypoint:     plan.Entrypoint(run.Entrypoint),
		Message:        run.Message,
		History:        run.History,
		EnabledActions: run.EnabledActions,
		Debug:          true,
	}
}

type IngressArtifact struct {
	Plan  plan.Plan `json:"plan"`
	Query string    `json:"query,omitempty"`
	// Now pins the clock for scoring so a resumed run scores like the original.
	Now time.Time `json:"now"`
}

// RetrievalPlan restores the query text, which the plan does not serialize.
func (a *IngressArtifact) RetrievalPlan() plan.Plan {
	p := a.Plan
	p.Query = a.Query
	return p
}

type CandidatesArtifact struct {
	Candidates []candidate.Candidate    `json:"candidates"`
	Fetched    int                      `json:"fetched"`
	BySource   map[candidate.Source]int `json:"bySource"`
}

type PromptArtifact struct {
	Prompt             prompt.Prompt         `json:"prompt"`
	Payload            json.RawMessage       `json:"payload"`
	AllowedEvidenceIDs []string              `json:"allowedEvidenceIds"`
	AllowedActionTypes []protocol.ActionType `json:"allowedActionTypes"`
	Chars              int                   `json:"chars"`
	EstimatedTokens    int                   `json:"estimatedTokens"`
	Elided             map[string]int        `json:"elided,omitempty"`
}

// Request builds the streaming request closed over this prompt's allow-lists.
func (a *PromptArtifact) Request(debug bool) protocol.Request {
	return protocol.Request{
		Messages: a.Prompt.Messages(),
		Allow:    protocol.NewAllowList(a.AllowedEvidenceIDs, a.AllowedActionTypes),
		Debug:    debug,
	}
}

type ModelCallArtifact struct {
	Events  []json.RawMessage `json:"events"`
	Summary protocol.Summary  `json:"summary"`
}
