package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument signals malformed input to a construction API.
var ErrInvalidArgument = errors.New("invalid argument")

// ErrBusinessRuleViolation signals that a guarded invariant was broken before raising an event.
var ErrBusinessRuleViolation = errors.New("business rule violation")

// ErrUnknownEventVariant signals that an aggregate received an event it does not know how to apply.
// This is a programming error: the serializer registry and the aggregate's Apply are out of sync.
var ErrUnknownEventVariant = errors.New("unknown event variant")

// UnknownEventVariant builds the error an Apply implementation returns from its default case.
func UnknownEventVariant(aggregate any, event DomainEvent) error {
	return fmt.Errorf("%w: %T cannot apply %T", ErrUnknownEventVariant, aggregate, event)
}

// BusinessRuleViolationError carries the human-readable message of a broken business rule.
type BusinessRuleViolationError struct {
	Message string
}

func (e *BusinessRuleViolationError) Error() string {
	return ErrBusinessRuleViolation.Error() + ": " + e.Message
}

// Is makes errors.Is(err, ErrBusinessRuleViolation) match.
func (e *BusinessRuleViolationError) Is(target error) bool {
	return target == ErrBusinessRuleViolation
}
