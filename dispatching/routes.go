package dispatching

import (
	"context"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// Notification is what a subscriber of events of type E receives.
type Notification[E domain.DomainEvent] struct {
	EventID  uuid.UUID
	TypeName string
	Event    E
}

// Handler handles notifications of events of type E. It must be safe for concurrent use.
type Handler[E domain.DomainEvent] func(ctx context.Context, notification Notification[E]) error

type subscriber struct {
	name   string
	invoke func(ctx context.Context, eventID uuid.UUID, typeName string, event domain.DomainEvent) error
}

type route struct {
	eventType   reflect.Type
	subscribers []subscriber
}

// Routes maps event types to their subscribers. Build it once at startup, before NewDispatcher.
// Routes is not safe for concurrent modification. A Dispatcher takes a snapshot, later changes do not affect it.
type Routes struct {
	byType map[reflect.Type]*route
	err    error
}

// NewRoutes creates an empty route table.
func NewRoutes() *Routes {
	return &Routes{byType: make(map[reflect.Type]*route)}
}

// Route declares the event type E as dispatchable, possibly without subscribers.
func Route[E domain.DomainEvent](routes *Routes) {
	routes.routeFor(reflect.TypeFor[E]())
}

// Subscribe adds a named subscriber for events of type E. The type must be the exact type that is raised.
// An empty name or a nil handler is reported by NewDispatcher.
func Subscribe[E domain.DomainEvent](routes *Routes, name string, handler Handler[E]) {
	if name == "" || handler == nil {
		if routes.err == nil {
			routes.err = fmt.Errorf("%w: for %s", ErrEmptySubscriber, reflect.TypeFor[E]())
		}

		return
	}

	r := routes.routeFor(reflect.TypeFor[E]())
	r.subscribers = append(r.subscribers, subscriber{
		name: name,
		invoke: func(ctx context.Context, eventID uuid.UUID, typeName string, event domain.DomainEvent) error {
			typed, ok := event.(E)
			if !ok {
				return fmt.Errorf("event %T routed to a subscriber of %s", event, reflect.TypeFor[E]())
			}

			return handler(ctx, Notification[E]{EventID: eventID, TypeName: typeName, Event: typed})
		},
	})
}

func (r *Routes) routeFor(eventType reflect.Type) *route {
	existing, ok := r.byType[eventType]
	if !ok {
		existing = &route{eventType: eventType}
		r.byType[eventType] = existing
	}

	return existing
}

func (r *Routes) snapshot() map[reflect.Type]route {
	snapshot := make(map[reflect.Type]route, len(r.byType))

	for eventType, existing := range r.byType {
		subscribers := make([]subscriber, len(existing.subscribers))
		copy(subscribers, existing.subscribers)
		snapshot[eventType] = route{eventType: eventType, subscribers: subscribers}
	}

	return snapshot
}
