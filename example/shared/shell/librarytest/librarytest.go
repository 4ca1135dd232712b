// Package librarytest wires the example's unit of work on the in-memory engine for feature tests.
package librarytest

import (
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/aggregate-eventstore-go/dispatching"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/memoryengine"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell/readmodel"
)

// Environment is a fully wired library on a fresh in-memory store.
type Environment struct {
	Store      *memoryengine.EventStore
	UnitOfWork *shell.BookCopyUnitOfWork
	LentBooks  *readmodel.LentBooks
}

// NewEnvironment creates an Environment. Version conflicts are retried up to three times.
func NewEnvironment(t testing.TB, storeOptions ...memoryengine.Option) Environment {
	t.Helper()

	store, err := memoryengine.NewEventStore(storeOptions...)
	require.NoError(t, err)

	lentBooks := readmodel.NewLentBooks()
	routes := dispatching.NewRoutes()
	lentBooks.Subscribe(routes)

	unitOfWork, err := shell.NewBookCopyUnitOfWork(store, store.Outbox(), routes, shell.WiringOptions{
		ConflictBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
		},
	})
	require.NoError(t, err)

	return Environment{Store: store, UnitOfWork: unitOfWork, LentBooks: lentBooks}
}
