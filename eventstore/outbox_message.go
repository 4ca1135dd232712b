package eventstore

import (
	"time"

	"github.com/google/uuid"
)

// OutboxMessages is an alias type for a slice of OutboxMessage.
type OutboxMessages = []OutboxMessage

// OutboxMessage stages one domain event for external delivery.
//
// It is written in the same transaction as the event records it announces. ProcessedOn stays nil until
// a relay confirmed delivery, which is the only mutation a message ever sees. Messages are never deleted.
//
// Delivery is at-least-once: a relay may publish a message again after a crash between publishing
// and marking it processed, so consumers must deduplicate on ID.
type OutboxMessage struct {
	ID                uuid.UUID
	OccurredOn        time.Time
	TypeName          string
	SerializedPayload string
	ProcessedOn       *time.Time
}

// IsProcessed reports whether a relay confirmed delivery of the message.
func (m OutboxMessage) IsProcessed() bool {
	return m.ProcessedOn != nil
}
