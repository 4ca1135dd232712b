package dispatching

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// ErrSubscriberFailure is the class of errors returned by subscribers during Publish.
var ErrSubscriberFailure = errors.New("subscriber failure")

// ErrOutboxConfiguration is returned if not exactly one of WithOutbox and WithoutOutbox was given.
var ErrOutboxConfiguration = fmt.Errorf(
	"%w: configure the dispatcher with exactly one of WithOutbox or WithoutOutbox",
	domain.ErrInvalidArgument,
)

// ErrUnroutedEventType is returned if an event type has no route.
var ErrUnroutedEventType = fmt.Errorf("%w: event type has no route", domain.ErrInvalidArgument)

var (
	ErrNilSerializer     = fmt.Errorf("%w: serializer must not be nil", domain.ErrInvalidArgument)
	ErrNilRoutes         = fmt.Errorf("%w: routes must not be nil", domain.ErrInvalidArgument)
	ErrNilOutboxStore    = fmt.Errorf("%w: outbox store must not be nil", domain.ErrInvalidArgument)
	ErrEmptySubscriber   = fmt.Errorf("%w: subscriber needs a name and a handler", domain.ErrInvalidArgument)
	ErrNilTransaction    = fmt.Errorf("%w: staging into the outbox needs a transaction", domain.ErrInvalidArgument)
	ErrInvalidConcurrent = fmt.Errorf("%w: max concurrent subscribers must be positive", domain.ErrInvalidArgument)
)

// SubscriberFailureError reports one failed subscriber invocation.
type SubscriberFailureError struct {
	EventID    uuid.UUID
	TypeName   string
	Subscriber string
	Err        error
}

func (e *SubscriberFailureError) Error() string {
	return fmt.Sprintf(
		"%s: subscriber %q failed on event %s (%s): %v",
		ErrSubscriberFailure, e.Subscriber, e.EventID, e.TypeName, e.Err,
	)
}

// Is makes errors.Is(err, ErrSubscriberFailure) match.
func (e *SubscriberFailureError) Is(target error) bool {
	return target == ErrSubscriberFailure
}

// Unwrap exposes the subscriber's own error.
func (e *SubscriberFailureError) Unwrap() error {
	return e.Err
}
