package domain

import (
	"fmt"
	"time"
)

// Aggregate is implemented by every event-sourced aggregate.
// Root is usually promoted from an embedded AggregateRoot, Apply is the aggregate's transition function.
//
// Apply must be a pure function of the current state and the event: no I/O, no randomness,
// no clock reads. Unknown events must be answered with UnknownEventVariant.
type Aggregate interface {
	Root() *AggregateRoot
	Apply(event DomainEvent) error
}

// AggregateRoot holds identity, version, and the pending events of an aggregate.
// Its zero value is a fresh aggregate at version 0.
type AggregateRoot struct {
	id      string
	version int
	pending DomainEvents
	clock   func() time.Time
}

// Root returns the receiver, so an embedded AggregateRoot satisfies the Aggregate interface's Root method.
func (r *AggregateRoot) Root() *AggregateRoot {
	return r
}

// ID returns the aggregate id, empty for a fresh aggregate that was not identified yet.
func (r *AggregateRoot) ID() string {
	return r.id
}

// Version returns the number of events applied since creation.
func (r *AggregateRoot) Version() int {
	return r.version
}

// PendingEvents returns a copy of the events raised since the last commit, in raise order.
func (r *AggregateRoot) PendingEvents() DomainEvents {
	pending := make(DomainEvents, len(r.pending))
	copy(pending, r.pending)

	return pending
}

// HasPendingEvents reports whether events were raised since the last commit.
func (r *AggregateRoot) HasPendingEvents() bool {
	return len(r.pending) > 0
}

// ClearPendingEvents empties the pending events. Calling it repeatedly is harmless.
func (r *AggregateRoot) ClearPendingEvents() {
	r.pending = nil
}

// SetID identifies a fresh aggregate. Once events were applied the id is fixed.
func (r *AggregateRoot) SetID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty aggregate id", ErrInvalidArgument)
	}

	if r.version > 0 && r.id != id {
		return fmt.Errorf("%w: aggregate %q at version %d cannot change its id", ErrInvalidArgument, r.id, r.version)
	}

	r.id = id

	return nil
}

// SetClock replaces the clock used by NextEventHeader.
func (r *AggregateRoot) SetClock(clock func() time.Time) {
	r.clock = clock
}

// NextEventHeader returns the header for the next event to raise: the aggregate id,
// the version after applying the event, and the current time.
func (r *AggregateRoot) NextEventHeader() EventHeader {
	clock := r.clock
	if clock == nil {
		clock = time.Now
	}

	return EventHeader{
		AggregateID:      r.id,
		AggregateVersion: r.version + 1,
		OccurredOn:       ToOccurredOn(clock()),
	}
}

// RaiseEvent applies a new event to the aggregate and records it as pending.
//
// The event must carry the aggregate id and the version Version()+1. A fresh aggregate adopts the
// id of its first event. The event is only recorded if Apply succeeds.
func RaiseEvent(aggregate Aggregate, event DomainEvent) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidArgument)
	}

	root := aggregate.Root()
	header := event.Header()

	if header.AggregateID == "" {
		return fmt.Errorf("%w: event %T has no aggregate id", ErrInvalidArgument, event)
	}

	if root.id != "" && header.AggregateID != root.id {
		return fmt.Errorf(
			"%w: event %T belongs to aggregate %q, not %q",
			ErrInvalidArgument, event, header.AggregateID, root.id,
		)
	}

	if header.AggregateVersion != root.version+1 {
		return fmt.Errorf(
			"%w: event %T has version %d, expected %d",
			ErrInvalidArgument, event, header.AggregateVersion, root.version+1,
		)
	}

	if err := aggregate.Apply(event); err != nil {
		return err
	}

	root.id = header.AggregateID
	root.pending = append(root.pending, event)
	root.version++

	return nil
}

// Create reconstructs an aggregate by replaying a non-empty, ordered event history.
// The replayed events are history, not new facts, so nothing is left pending.
func Create[A Aggregate](factory func() A, events DomainEvents) (A, error) {
	var zero A

	if factory == nil {
		return zero, fmt.Errorf("%w: nil aggregate factory", ErrInvalidArgument)
	}

	if len(events) == 0 {
		return zero, fmt.Errorf("%w: cannot create an aggregate from an empty event sequence", ErrInvalidArgument)
	}

	aggregate := factory()

	for _, event := range events {
		if err := RaiseEvent(aggregate, event); err != nil {
			return zero, err
		}
	}

	aggregate.Root().ClearPendingEvents()

	return aggregate, nil
}
