package outboxrelay

import (
	"context"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

// Message attribute names shared by all publishers.
const (
	AttrEventID    = "event_id"
	AttrEventType  = "event_type"
	AttrOccurredOn = "occurred_on"
	AttrPayload    = "payload"
)

// Publisher delivers one outbox message to an external transport.
type Publisher interface {
	Publish(ctx context.Context, message eventstore.OutboxMessage) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, message eventstore.OutboxMessage) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, message eventstore.OutboxMessage) error {
	return f(ctx, message)
}
