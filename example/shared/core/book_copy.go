package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// BookCopy is one physical copy of a book, tracked from being added to circulation until removal.
type BookCopy struct {
	domain.AggregateRoot
	isbn            ISBNString
	title           string
	isInCirculation bool
	lentTo          ReaderIDString
	timesLent       int
}

// NewBookCopy is the factory for fresh and replayed BookCopy aggregates.
func NewBookCopy() *BookCopy {
	return &BookCopy{}
}

// AddBookCopyToCirculation starts the life of a new book copy.
func AddBookCopyToCirculation(
	bookID uuid.UUID,
	isbn ISBNString,
	title string,
	authors string,
	edition string,
	publisher string,
	publicationYear uint,
	clock func() time.Time,
) (*BookCopy, error) {
	b := NewBookCopy()
	b.SetClock(clock)

	if err := b.SetID(bookID.String()); err != nil {
		return nil, err
	}

	if err := domain.CheckRule(isbnMustBeGiven{isbn: isbn}); err != nil {
		return nil, err
	}

	event := BookCopyAddedToCirculation{
		EventHeader:     b.NextEventHeader(),
		ISBN:            isbn,
		Title:           title,
		Authors:         authors,
		Edition:         edition,
		Publisher:       publisher,
		PublicationYear: publicationYear,
	}

	if err := domain.RaiseEvent(b, event); err != nil {
		return nil, err
	}

	return b, nil
}

// LendToReader lends the copy to a reader. The lending policy is consulted only after the
// synchronous rules passed, it may block on a read model lookup.
func (b *BookCopy) LendToReader(ctx context.Context, readerID uuid.UUID, policy LendingPolicy) error {
	err := domain.CheckRules(
		bookCopyMustBeInCirculation{book: b},
		bookCopyMustNotBeLent{book: b},
	)
	if err != nil {
		return err
	}

	if policy != nil {
		rule := readerMustNotExceedLendingLimit{policy: policy, readerID: readerID.String()}
		if err = domain.CheckRuleContext(ctx, rule); err != nil {
			return err
		}
	}

	return domain.RaiseEvent(b, BookCopyLentToReader{
		EventHeader: b.NextEventHeader(),
		ReaderID:    readerID.String(),
	})
}

// ReturnFromReader takes the copy back from the reader it is lent to.
func (b *BookCopy) ReturnFromReader(readerID uuid.UUID) error {
	if err := domain.CheckRule(bookCopyMustBeLentToReader{book: b, readerID: readerID.String()}); err != nil {
		return err
	}

	return domain.RaiseEvent(b, BookCopyReturnedByReader{
		EventHeader: b.NextEventHeader(),
		ReaderID:    readerID.String(),
	})
}

// RemoveFromCirculation ends the life of the copy.
func (b *BookCopy) RemoveFromCirculation() error {
	err := domain.CheckRules(
		bookCopyMustBeInCirculation{book: b},
		bookCopyMustNotBeLent{book: b},
	)
	if err != nil {
		return err
	}

	return domain.RaiseEvent(b, BookCopyRemovedFromCirculation{
		EventHeader: b.NextEventHeader(),
	})
}

// Apply folds one event into the state.
func (b *BookCopy) Apply(event domain.DomainEvent) error {
	switch e := event.(type) {
	case BookCopyAddedToCirculation:
		b.isbn = e.ISBN
		b.title = e.Title
		b.isInCirculation = true

	case BookCopyLentToReader:
		b.lentTo = e.ReaderID
		b.timesLent++

	case BookCopyReturnedByReader:
		b.lentTo = ""

	case BookCopyRemovedFromCirculation:
		b.isInCirculation = false

	default:
		return domain.UnknownEventVariant(b, event)
	}

	return nil
}

// ISBN returns the ISBN of the book.
func (b *BookCopy) ISBN() ISBNString {
	return b.isbn
}

// Title returns the title of the book.
func (b *BookCopy) Title() string {
	return b.title
}

// IsInCirculation reports whether the copy can be lent.
func (b *BookCopy) IsInCirculation() bool {
	return b.isInCirculation
}

// LentTo returns the reader holding the copy, empty if it is on the shelf.
func (b *BookCopy) LentTo() ReaderIDString {
	return b.lentTo
}

// TimesLent counts all lendings in the copy's history.
func (b *BookCopy) TimesLent() int {
	return b.timesLent
}
