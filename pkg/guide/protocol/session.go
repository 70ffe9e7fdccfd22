package protocol

const (
	MaxSuggestions        = 5
	MinSuggestionsForDone = 3
)

type State int

const (
	StateStreaming State = iota
	StateAccepting
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStreaming:
		return "STREAMING"
	case StateAccepting:
		return "ACCEPTING"
	case StateDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// Session enforces the ordering and count rules that span a whole stream.
// Every rejection is tallied and the stream carries on.
type Session struct {
	state    State
	accepted int
	drops    map[DropReason]int
	onDrop   func(DropReason)
}

func NewSession(onDrop func(DropReason)) *Session {
	return &Session{drops: make(map[DropReason]int), onDrop: onDrop}
}

func (s *Session) State() State  { return s.state }
func (s *Session) Accepted() int { return s.accepted }
func (s *Session) IsDone() bool  { return s.state == StateDone }

// Drops returns a copy of the drop histogram.
func (s *Session) Drops() map[DropReason]int {
	out := make(map[DropReason]int, len(s.drops))
	for k, v := range s.drops {
		out[k] = v
	}
	return out
}

func (s *Session) Drop(reason DropReason) {
	s.drops[reason]++
	if s.onDrop != nil {
		s.onDrop(reason)
	}
}

func (s *Session) rejectAfterDone(t EventType) bool {
	if s.state != StateDone {
		return false
	}
	if t == EventDone {
		s.Drop(DropDuplicateDone)
	} else {
		s.Drop(DropAfterDone)
	}
	return true
}

// AcceptSuggestion admits a validated suggestion unless the cap is reached.
func (s *Session) AcceptSuggestion() bool {
	if s.rejectAfterDone(EventSuggestion) {
		return false
	}
	if s.accepted >= MaxSuggestions {
		s.Drop(DropMaxSuggestionsReached)
		return false
	}
	s.accepted++
	s.state = StateAccepting
	return true
}

// CanAcceptDone reports whether a done would be accepted now, without recording anything.
func (s *Session) CanAcceptDone() bool {
	return s.state != StateDone && s.accepted >= MinSuggestionsForDone && s.accepted <= MaxSuggestions
}

// AcceptDone admits done only once and only with 3 to 5 accepted suggestions.
func (s *Session) AcceptDone() bool {
	if s.rejectAfterDone(EventDone) {
		return false
	}
	if !s.CanAcceptDone() {
		s.Drop(DropInvalidSuggestionCount)
		return false
	}
	s.state = StateDone
	return true
}

// Close ends a session that never saw an acceptable done.
func (s *Session) Close() {
	s.state = StateDone
}

func (s *Session) Summary() DebugSummary {
	return DebugSummary{Accepted: s.accepted, Drops: s.Drops()}
}
