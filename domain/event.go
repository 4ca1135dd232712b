package domain

import (
	"time"
)

// EventHeader holds the attributes every domain event carries.
// Event structs embed it so that the fields are serialized flat next to the payload fields.
type EventHeader struct {
	AggregateID      string    `json:"aggregateId"`
	AggregateVersion int       `json:"aggregateVersion"`
	OccurredOn       time.Time `json:"occurredOn"`
}

// Header returns the header itself, so embedding EventHeader satisfies DomainEvent.
func (h EventHeader) Header() EventHeader {
	return h
}

// DomainEvent is an immutable fact that happened to an aggregate.
type DomainEvent interface {
	Header() EventHeader
}

// DomainEvents is a slice of DomainEvent instances.
type DomainEvents = []DomainEvent

// TypedEvent is implemented by events that choose their own stable type name.
// Events without it are registered under their full Go type name.
type TypedEvent interface {
	DomainEvent
	EventType() string
}

// ToOccurredOn normalizes a timestamp to UTC with microsecond precision.
func ToOccurredOn(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
