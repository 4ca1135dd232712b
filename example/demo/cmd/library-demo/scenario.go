package main

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/features/command/addbookcopy"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/features/command/lendbookcopytoreader"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/features/command/removebookcopy"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/features/command/returnbookcopyfromreader"
)

const lendingRounds = 3

var catalog = []struct {
	isbn, title, authors, edition, publisher string
	year                                     uint
}{
	{"978-1-098-10013-1", "Learning Domain-Driven Design", "Vlad Khononov", "First Edition", "O'Reilly Media, Inc.", 2021},
	{"978-0-321-12521-7", "Domain-Driven Design", "Eric Evans", "First Edition", "Addison-Wesley", 2003},
	{"978-0-13-468599-1", "The Pragmatic Programmer", "David Thomas, Andrew Hunt", "20th Anniversary Edition", "Addison-Wesley", 2019},
	{"978-1-4493-7332-0", "Designing Data-Intensive Applications", "Martin Kleppmann", "First Edition", "O'Reilly Media, Inc.", 2017},
}

type summary struct {
	commands int
	rejected int
}

// scenario adds book copies, lends and returns them for a few rounds, and finally takes back
// and removes every fourth copy. Readers are picked at random, so some lendings are rejected.
type scenario struct {
	handlers handlers
	books    []uuid.UUID
	readers  []uuid.UUID
	summary  summary
}

func newScenario(h handlers, bookCount, readerCount int) *scenario {
	s := &scenario{handlers: h}

	for i := 0; i < bookCount; i++ {
		s.books = append(s.books, uuid.New())
	}

	for i := 0; i < readerCount; i++ {
		s.readers = append(s.readers, uuid.New())
	}

	return s
}

func (s *scenario) run(ctx context.Context) (summary, error) {
	for i, bookID := range s.books {
		entry := catalog[i%len(catalog)]
		err := s.handlers.addBookCopy.Handle(ctx, addbookcopy.BuildCommand(
			bookID, entry.isbn, entry.title, entry.authors, entry.edition, entry.publisher, entry.year, time.Now(),
		))
		if err = s.count(err); err != nil {
			return s.summary, err
		}
	}

	lentTo := make(map[uuid.UUID]uuid.UUID, len(s.books))

	for round := 0; round < lendingRounds; round++ {
		for _, bookID := range s.books {
			if readerID, lent := lentTo[bookID]; lent {
				err := s.handlers.returnBookCopy.Handle(ctx, returnbookcopyfromreader.BuildCommand(bookID, readerID, time.Now()))
				if err = s.count(err); err != nil {
					return s.summary, err
				}

				delete(lentTo, bookID)

				continue
			}

			readerID := s.readers[rand.IntN(len(s.readers))]
			err := s.handlers.lendBookCopy.Handle(ctx, lendbookcopytoreader.BuildCommand(bookID, readerID, time.Now()))
			if errors.Is(err, domain.ErrBusinessRuleViolation) {
				s.summary.commands++
				s.summary.rejected++

				continue
			}

			if err = s.count(err); err != nil {
				return s.summary, err
			}

			lentTo[bookID] = readerID
		}
	}

	for i, bookID := range s.books {
		if i%4 != 3 {
			continue
		}

		if readerID, lent := lentTo[bookID]; lent {
			err := s.handlers.returnBookCopy.Handle(ctx, returnbookcopyfromreader.BuildCommand(bookID, readerID, time.Now()))
			if err = s.count(err); err != nil {
				return s.summary, err
			}
		}

		err := s.handlers.removeBookCopy.Handle(ctx, removebookcopy.BuildCommand(bookID, time.Now()))
		if err = s.count(err); err != nil {
			return s.summary, err
		}
	}

	return s.summary, nil
}

func (s *scenario) count(err error) error {
	s.summary.commands++

	return err
}
