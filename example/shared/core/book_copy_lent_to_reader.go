package core

import (
	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// BookCopyLentToReaderEventType is the event type identifier.
const BookCopyLentToReaderEventType = "BookCopyLentToReader"

// BookCopyLentToReader represents when a book copy is lent to a reader.
type BookCopyLentToReader struct {
	domain.EventHeader
	ReaderID ReaderIDString `json:"readerId"`
}

// EventType returns the event type identifier.
func (e BookCopyLentToReader) EventType() string {
	return BookCopyLentToReaderEventType
}
