package core

import (
	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// BookCopyTypeName is the aggregate type name, the prefix of every BookCopy stream key.
const BookCopyTypeName = "BookCopy"

// MaxBooksLentPerReader is the lending limit checked by the ReaderMustNotExceedLendingLimit rule.
const MaxBooksLentPerReader = 10

// BookIDString represents a book identifier
type BookIDString = string

// ReaderIDString represents a reader identifier
type ReaderIDString = string

// ISBNString represents an ISBN identifier
type ISBNString = string

// DomainEvents is a slice of DomainEvent instances.
type DomainEvents = domain.DomainEvents

// AllEvents returns one sample of each BookCopy event, used to build the serializer registry.
func AllEvents() DomainEvents {
	return DomainEvents{
		BookCopyAddedToCirculation{},
		BookCopyLentToReader{},
		BookCopyReturnedByReader{},
		BookCopyRemovedFromCirculation{},
	}
}
