package serialization

import (
	"errors"
	"fmt"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// ErrUnknownEventType signals a type name or event type that is not registered.
// It indicates a registry/data mismatch and is not retryable.
var ErrUnknownEventType = errors.New("unknown event type")

// ErrDeserializationFailure signals a payload that cannot be parsed into its registered type.
// It indicates corrupt data and is not retryable.
var ErrDeserializationFailure = errors.New("deserialization failure")

// ErrSerializationFailure signals an event that cannot be encoded.
var ErrSerializationFailure = errors.New("serialization failure")

var ErrEmptyRegistry = fmt.Errorf("%w: event type registry must not be empty", domain.ErrInvalidArgument)
var ErrUnserializableEventShape = fmt.Errorf("%w: event types have fields that cannot be round-tripped", domain.ErrInvalidArgument)
var ErrDuplicateEventType = fmt.Errorf("%w: duplicate event type name", domain.ErrInvalidArgument)
var ErrInvalidEventShape = fmt.Errorf("%w: event type must be a struct or a pointer to a struct", domain.ErrInvalidArgument)
