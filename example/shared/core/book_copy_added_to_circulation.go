package core

import (
	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// BookCopyAddedToCirculationEventType is the event type identifier.
const BookCopyAddedToCirculationEventType = "BookCopyAddedToCirculation"

// BookCopyAddedToCirculation represents when a book copy is added to library circulation.
type BookCopyAddedToCirculation struct {
	domain.EventHeader
	ISBN            ISBNString `json:"isbn"`
	Title           string     `json:"title"`
	Authors         string     `json:"authors"`
	Edition         string     `json:"edition"`
	Publisher       string     `json:"publisher"`
	PublicationYear uint       `json:"publicationYear"`
}

// EventType returns the event type identifier.
func (e BookCopyAddedToCirculation) EventType() string {
	return BookCopyAddedToCirculationEventType
}
