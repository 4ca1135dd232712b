package core

import (
	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// BookCopyReturnedByReaderEventType is the event type identifier.
const BookCopyReturnedByReaderEventType = "BookCopyReturnedByReader"

// BookCopyReturnedByReader represents when a reader returns a book copy.
type BookCopyReturnedByReader struct {
	domain.EventHeader
	ReaderID ReaderIDString `json:"readerId"`
}

// EventType returns the event type identifier.
func (e BookCopyReturnedByReader) EventType() string {
	return BookCopyReturnedByReaderEventType
}
