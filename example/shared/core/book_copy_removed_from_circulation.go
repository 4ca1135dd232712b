package core

import (
	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// BookCopyRemovedFromCirculationEventType is the event type identifier.
const BookCopyRemovedFromCirculationEventType = "BookCopyRemovedFromCirculation"

// BookCopyRemovedFromCirculation represents when a book copy is taken out of circulation.
type BookCopyRemovedFromCirculation struct {
	domain.EventHeader
}

// EventType returns the event type identifier.
func (e BookCopyRemovedFromCirculation) EventType() string {
	return BookCopyRemovedFromCirculationEventType
}
