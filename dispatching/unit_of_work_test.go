package dispatching_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/aggregate-eventstore-go/dispatching"
	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/memoryengine"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/core"
	"github.com/AntonStoeckl/aggregate-eventstore-go/repository"
)

type libraryFixture struct {
	store      *memoryengine.EventStore
	repo       *repository.Repository[*core.BookCopy]
	unitOfWork *dispatching.UnitOfWork[*core.BookCopy]
	lent       *atomic.Int32
}

func newLibraryFixture(t *testing.T, storeOptions ...memoryengine.Option) libraryFixture {
	t.Helper()

	store, err := memoryengine.NewEventStore(storeOptions...)
	require.NoError(t, err)

	serializer := newSerializer(t)
	repo, err := repository.New(core.BookCopyTypeName, core.NewBookCopy, store, serializer)
	require.NoError(t, err)

	lent := &atomic.Int32{}
	routes := dispatching.NewRoutes()
	routeAll(routes)
	dispatching.Subscribe[core.BookCopyLentToReader](routes, "counter",
		func(context.Context, dispatching.Notification[core.BookCopyLentToReader]) error {
			lent.Add(1)
			return nil
		})

	dispatcher, err := dispatching.NewDispatcher(serializer, routes, dispatching.WithOutbox(store.Outbox()))
	require.NoError(t, err)

	unitOfWork, err := dispatching.NewUnitOfWork(
		store, repo, dispatcher,
		dispatching.WithConflictRetry(func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(0), 3)
		}),
	)
	require.NoError(t, err)

	return libraryFixture{store: store, repo: repo, unitOfWork: unitOfWork, lent: lent}
}

func Test_UnitOfWork_Commit_Stores_Events_And_Outbox_Then_Publishes(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newLibraryFixture(t)

	// arrange
	book := newBookCopy(t)
	require.NoError(t, book.LendToReader(ctx, uuid.New(), nil))

	// act
	err := f.unitOfWork.Commit(ctx, book)

	// assert
	require.NoError(t, err)
	assert.False(t, book.HasPendingEvents())
	assert.Equal(t, int32(1), f.lent.Load())

	loaded, found, err := f.repo.GetByID(ctx, book.ID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, loaded.Version())

	messages, err := f.store.Outbox().Messages(ctx)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func Test_UnitOfWork_Commit_When_Append_Fails_Then_Nothing_Is_Durable(t *testing.T) {
	// setup
	ctx := context.Background()
	diskFull := errors.New("disk full")
	f := newLibraryFixture(t, memoryengine.WithAppendFailureInjector(func(record eventstore.EventRecord) error {
		if record.AggregateVersion == 2 {
			return diskFull
		}
		return nil
	}))

	// arrange
	book := newBookCopy(t)
	require.NoError(t, book.LendToReader(ctx, uuid.New(), nil))

	// act
	err := f.unitOfWork.Commit(ctx, book)

	// assert
	require.Error(t, err)
	assert.ErrorIs(t, err, eventstore.ErrStorageFailure)
	assert.True(t, book.HasPendingEvents())
	assert.Equal(t, int32(0), f.lent.Load())

	_, found, err := f.repo.GetByID(ctx, book.ID())
	require.NoError(t, err)
	assert.False(t, found)

	messages, err := f.store.Outbox().Messages(ctx)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

// commitFailingStore fails the next failCommits transaction commits with a storage failure.
type commitFailingStore struct {
	*memoryengine.EventStore
	failCommits atomic.Int32
}

type commitFailingTx struct {
	eventstore.Transaction
	store *commitFailingStore
}

func (s *commitFailingStore) BeginTransaction(ctx context.Context) (eventstore.Transaction, error) {
	tx, err := s.EventStore.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}

	return &commitFailingTx{Transaction: tx, store: s}, nil
}

func (s *commitFailingStore) Append(ctx context.Context, tx eventstore.Transaction, record eventstore.EventRecord) error {
	return s.EventStore.Append(ctx, unwrapTx(tx), record)
}

func (s *commitFailingStore) RegisterEventToNotify(
	ctx context.Context,
	tx eventstore.Transaction,
	message eventstore.OutboxMessage,
) error {
	return s.Outbox().RegisterEventToNotify(ctx, unwrapTx(tx), message)
}

func (t *commitFailingTx) Commit(ctx context.Context) error {
	if t.store.failCommits.Add(-1) >= 0 {
		_ = t.Transaction.Rollback(ctx)
		return errors.Join(eventstore.ErrStorageFailure, errors.New("connection reset by peer"))
	}

	return t.Transaction.Commit(ctx)
}

func unwrapTx(tx eventstore.Transaction) eventstore.Transaction {
	if wrapped, ok := tx.(*commitFailingTx); ok {
		return wrapped.Transaction
	}

	return tx
}

func Test_UnitOfWork_Commit_When_Transaction_Commit_Fails_Then_Pending_Events_Survive_For_A_Retry(t *testing.T) {
	// setup
	ctx := context.Background()
	memStore, err := memoryengine.NewEventStore()
	require.NoError(t, err)
	store := &commitFailingStore{EventStore: memStore}
	store.failCommits.Store(1)

	serializer := newSerializer(t)
	repo, err := repository.New(core.BookCopyTypeName, core.NewBookCopy, store, serializer)
	require.NoError(t, err)

	lent := &atomic.Int32{}
	routes := dispatching.NewRoutes()
	routeAll(routes)
	dispatching.Subscribe[core.BookCopyLentToReader](routes, "counter",
		func(context.Context, dispatching.Notification[core.BookCopyLentToReader]) error {
			lent.Add(1)
			return nil
		})

	dispatcher, err := dispatching.NewDispatcher(serializer, routes, dispatching.WithOutbox(store))
	require.NoError(t, err)
	unitOfWork, err := dispatching.NewUnitOfWork(store, repo, dispatcher)
	require.NoError(t, err)

	// arrange
	book := newBookCopy(t)
	require.NoError(t, book.LendToReader(ctx, uuid.New(), nil))

	// act
	firstErr := unitOfWork.Commit(ctx, book)

	// assert
	assert.ErrorIs(t, firstErr, eventstore.ErrStorageFailure)
	assert.True(t, book.HasPendingEvents())
	assert.Len(t, book.PendingEvents(), 2)
	assert.Equal(t, 2, book.Version())
	assert.Equal(t, int32(0), lent.Load())

	_, found, err := repo.GetByID(ctx, book.ID())
	require.NoError(t, err)
	assert.False(t, found)

	// act
	retryErr := unitOfWork.Commit(ctx, book)

	// assert
	require.NoError(t, retryErr)
	assert.False(t, book.HasPendingEvents())
	assert.Equal(t, int32(1), lent.Load())

	loaded, found, err := repo.GetByID(ctx, book.ID())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, loaded.Version())

	messages, err := memStore.Outbox().Messages(ctx)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func Test_UnitOfWork_Commit_When_All_Subscribers_Fail_Then_Events_And_Outbox_Stay_Durable(t *testing.T) {
	// setup
	ctx := context.Background()
	store, err := memoryengine.NewEventStore()
	require.NoError(t, err)

	serializer := newSerializer(t)
	repo, err := repository.New(core.BookCopyTypeName, core.NewBookCopy, store, serializer)
	require.NoError(t, err)

	routes := dispatching.NewRoutes()
	routeAll(routes)
	dispatching.Subscribe[core.BookCopyAddedToCirculation](routes, "failing",
		func(context.Context, dispatching.Notification[core.BookCopyAddedToCirculation]) error {
			return errors.New("search index unavailable")
		})
	dispatching.Subscribe[core.BookCopyLentToReader](routes, "panicking",
		func(context.Context, dispatching.Notification[core.BookCopyLentToReader]) error {
			panic("mailer crashed")
		})

	dispatcher, err := dispatching.NewDispatcher(serializer, routes, dispatching.WithOutbox(store.Outbox()))
	require.NoError(t, err)
	unitOfWork, err := dispatching.NewUnitOfWork(store, repo, dispatcher)
	require.NoError(t, err)

	// arrange
	book := newBookCopy(t)
	require.NoError(t, book.LendToReader(ctx, uuid.New(), nil))

	// act
	err = unitOfWork.Commit(ctx, book)

	// assert
	require.Error(t, err)
	assert.ErrorIs(t, err, dispatching.ErrSubscriberFailure)
	assert.False(t, book.HasPendingEvents())

	messages, err := store.Outbox().Messages(ctx)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	for _, message := range messages {
		assert.Nil(t, message.ProcessedOn)
	}

	streamKey, err := eventstore.StreamKey(core.BookCopyTypeName, book.ID())
	require.NoError(t, err)
	records, err := store.LoadStream(ctx, streamKey)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 1, records[0].AggregateVersion)
	assert.Equal(t, 2, records[1].AggregateVersion)
}

func Test_UnitOfWork_Execute_Retries_On_Version_Conflict(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newLibraryFixture(t)
	book := newBookCopy(t)
	require.NoError(t, f.unitOfWork.Commit(ctx, book))

	// arrange
	attempts := 0
	readerID := uuid.New()

	// act
	result, err := f.unitOfWork.Execute(ctx, book.ID(), func(ctx context.Context, loaded *core.BookCopy, found bool) (*core.BookCopy, error) {
		attempts++
		require.True(t, found)

		if attempts == 1 {
			// a concurrent writer sneaks in between load and commit
			competitor, _, loadErr := f.repo.GetByID(ctx, book.ID())
			require.NoError(t, loadErr)
			require.NoError(t, competitor.LendToReader(ctx, uuid.New(), nil))
			require.NoError(t, competitor.ReturnFromReader(uuid.MustParse(competitor.LentTo())))
			require.NoError(t, f.unitOfWork.Commit(ctx, competitor))
		}

		return loaded, loaded.LendToReader(ctx, readerID, nil)
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, 4, result.Version())
	assert.Equal(t, readerID.String(), result.LentTo())
	assert.Equal(t, int32(2), f.lent.Load())
}

func Test_UnitOfWork_Execute_When_Rule_Is_Broken_Then_Does_Not_Retry(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newLibraryFixture(t)
	book := newBookCopy(t)
	require.NoError(t, book.RemoveFromCirculation())
	require.NoError(t, f.unitOfWork.Commit(ctx, book))
	attempts := 0

	// act
	_, err := f.unitOfWork.Execute(ctx, book.ID(), func(ctx context.Context, loaded *core.BookCopy, _ bool) (*core.BookCopy, error) {
		attempts++
		return loaded, loaded.LendToReader(ctx, uuid.New(), nil)
	})

	// assert
	assert.ErrorIs(t, err, domain.ErrBusinessRuleViolation)
	assert.Equal(t, 1, attempts)
}

func Test_UnitOfWork_Execute_Creates_A_New_Aggregate(t *testing.T) {
	// setup
	ctx := context.Background()
	f := newLibraryFixture(t)
	bookID := uuid.New()

	// act
	result, err := f.unitOfWork.Execute(ctx, bookID.String(), func(_ context.Context, _ *core.BookCopy, found bool) (*core.BookCopy, error) {
		require.False(t, found)

		return core.AddBookCopyToCirculation(
			bookID, "978-1-4919-5035-7", "Designing Data-Intensive Applications", "Martin Kleppmann",
			"First Edition", "O'Reilly Media, Inc.", 2017, clock,
		)
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, bookID.String(), result.ID())
	assert.Equal(t, 1, result.Version())
}
