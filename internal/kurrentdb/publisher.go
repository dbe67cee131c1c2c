package kurrentdb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"

	"github.com/oncoayuda/casework/internal/shared/events"
)

// appender is the part of Client the publisher needs.
type appender interface {
	AppendToStream(ctx context.Context, stream string, events ...esdb.EventData) (uint64, error)
}

// Publisher appends workflow events to one stream per entity code, so
// casework-SOL-001-01 holds the full notification history of that request.
type Publisher struct {
	client appender
	prefix string
	closer func() error
}

// NewPublisher creates a new KurrentDB-backed event publisher.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client, prefix: client.StreamPrefix(), closer: client.Close}
}

type eventMetadata struct {
	Source        string `json:"source"`
	ActorID       string `json:"actor_id,omitempty"`
	ActorRole     string `json:"actor_role,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	metadata, err := json.Marshal(eventMetadata{
		Source:        event.Source,
		ActorID:       event.ActorID.String(),
		ActorRole:     event.ActorRole,
		CorrelationID: event.CorrelationID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	esdbEvent := esdb.EventData{
		EventID:     toUUID(event.ID),
		EventType:   event.Type,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
		Metadata:    metadata,
	}

	if _, err := p.client.AppendToStream(ctx, streamName(p.prefix, event.Subject), esdbEvent); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}
	return nil
}

// Close closes the underlying client.
func (p *Publisher) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}
