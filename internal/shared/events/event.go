package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/oncoayuda/casework/internal/shared/types"
)

// Event is a committed workflow transition handed to the notification dispatcher.
type Event struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Source        string    `json:"source"`
	Subject       string    `json:"subject"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`

	// Actor information
	ActorID   types.ID `json:"actor_id"`
	ActorRole string   `json:"actor_role"`

	// Event data
	Data any `json:"data"`
}

// NewEvent creates a new event with auto-generated ID and timestamp.
// subject is the human-readable code of the entity that changed.
func NewEvent(eventType, source, subject string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Subject:   subject,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithActor sets the actor information on the event
func (e Event) WithActor(actorID types.ID, role string) Event {
	e.ActorID = actorID
	e.ActorRole = role
	return e
}

// WithCorrelation sets the correlation ID for request tracing
func (e Event) WithCorrelation(correlationID string) Event {
	e.CorrelationID = correlationID
	return e
}

// Publisher delivers one event to a sink. Implementations may block.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Emitter accepts events without blocking the caller.
type Emitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(event Event)

func (f EmitterFunc) Emit(event Event) { f(event) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})
