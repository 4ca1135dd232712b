package core

import (
	"context"
	"fmt"
)

// LendingPolicy answers how many books a reader currently holds, typically from a read model.
type LendingPolicy interface {
	BooksLentTo(ctx context.Context, readerID ReaderIDString) (int, error)
}

type isbnMustBeGiven struct {
	isbn ISBNString
}

func (r isbnMustBeGiven) IsBroken() bool  { return r.isbn == "" }
func (r isbnMustBeGiven) Message() string { return "book copy needs an ISBN" }

type bookCopyMustBeInCirculation struct {
	book *BookCopy
}

func (r bookCopyMustBeInCirculation) IsBroken() bool  { return !r.book.isInCirculation }
func (r bookCopyMustBeInCirculation) Message() string { return "book is not in circulation" }

type bookCopyMustNotBeLent struct {
	book *BookCopy
}

func (r bookCopyMustNotBeLent) IsBroken() bool  { return r.book.lentTo != "" }
func (r bookCopyMustNotBeLent) Message() string { return "book is already lent" }

type bookCopyMustBeLentToReader struct {
	book     *BookCopy
	readerID ReaderIDString
}

func (r bookCopyMustBeLentToReader) IsBroken() bool { return r.book.lentTo != r.readerID }

func (r bookCopyMustBeLentToReader) Message() string {
	return fmt.Sprintf("book is not lent to reader %s", r.readerID)
}

type readerMustNotExceedLendingLimit struct {
	policy   LendingPolicy
	readerID ReaderIDString
}

func (r readerMustNotExceedLendingLimit) IsBroken(ctx context.Context) (bool, error) {
	count, err := r.policy.BooksLentTo(ctx, r.readerID)
	if err != nil {
		return false, err
	}

	return count >= MaxBooksLentPerReader, nil
}

func (r readerMustNotExceedLendingLimit) Message() string {
	return fmt.Sprintf("reader has too many books (limit %d)", MaxBooksLentPerReader)
}
