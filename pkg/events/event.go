package events

import (
	"context"
	"time"
)

// Event types carried on the bus. The NATS subject is "events.<type>".
const (
	TypeGuideSessionCompleted = "guide.session_completed"
	TypeDebugRunSettled       = "debug_run.settled"
	TypeNoteSaved             = "note.saved"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the dotted type code, e.g. "guide.session_completed".
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string               { return e.Type }
func (e BaseEvent) Payload() map[string]interface{} { return e.Data }
func (e BaseEvent) Timestamp() time.Time            { return e.OccurredAt }

// New stamps an event with the current UTC time.
func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher is used when no broker is reachable.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// String reads a string field from an event payload.
func String(e Event, key string) string {
	if v, ok := e.Payload()[key].(string); ok {
		return v
	}
	return ""
}
