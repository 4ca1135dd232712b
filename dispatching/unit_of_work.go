package dispatching

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/repository"
)

const (
	logMsgRollbackFailed   = "rollback after failed commit preparation failed"
	logMsgConflictRetrying = "version conflict, retrying unit of work"
	logAttrAttempt         = "attempt"
)

var (
	ErrNilRepository = fmt.Errorf("%w: repository must not be nil", domain.ErrInvalidArgument)
	ErrNilDispatcher = fmt.Errorf("%w: dispatcher must not be nil", domain.ErrInvalidArgument)
	ErrNilEventStore = fmt.Errorf("%w: event store must not be nil", domain.ErrInvalidArgument)
)

// UnitOfWorkOption defines a functional option for configuring a UnitOfWork.
type UnitOfWorkOption func(*unitOfWorkSettings) error

type unitOfWorkSettings struct {
	conflictBackOff func() backoff.BackOff
	logger          eventstore.Logger
}

// WithConflictRetry makes Execute retry on ErrVersionConflict, paced by a fresh BackOff per Execute call.
func WithConflictRetry(newBackOff func() backoff.BackOff) UnitOfWorkOption {
	return func(s *unitOfWorkSettings) error {
		if newBackOff == nil {
			return fmt.Errorf("%w: back-off factory must not be nil", domain.ErrInvalidArgument)
		}

		s.conflictBackOff = newBackOff

		return nil
	}
}

// WithUnitOfWorkLogger sets the logger for rollback failures and conflict retries.
func WithUnitOfWorkLogger(logger eventstore.Logger) UnitOfWorkOption {
	return func(s *unitOfWorkSettings) error {
		s.logger = logger
		return nil
	}
}

// UnitOfWork commits one aggregate's pending events together with their outbox messages
// and then publishes them to in-process subscribers.
type UnitOfWork[A domain.Aggregate] struct {
	store      eventstore.EventStore
	repository *repository.Repository[A]
	dispatcher *Dispatcher
	settings   unitOfWorkSettings
}

// NewUnitOfWork creates a UnitOfWork. The outbox store of the dispatcher must share transactions with store.
func NewUnitOfWork[A domain.Aggregate](
	store eventstore.EventStore,
	repo *repository.Repository[A],
	dispatcher *Dispatcher,
	options ...UnitOfWorkOption,
) (*UnitOfWork[A], error) {
	if store == nil {
		return nil, ErrNilEventStore
	}

	if repo == nil {
		return nil, ErrNilRepository
	}

	if dispatcher == nil {
		return nil, ErrNilDispatcher
	}

	uow := &UnitOfWork[A]{store: store, repository: repo, dispatcher: dispatcher}

	for _, option := range options {
		if err := option(&uow.settings); err != nil {
			return nil, err
		}
	}

	return uow, nil
}

// Repository returns the repository the unit of work appends through.
func (u *UnitOfWork[A]) Repository() *repository.Repository[A] {
	return u.repository
}

// Commit appends the aggregate's pending events and their outbox messages in one transaction,
// commits it, and then publishes the events.
//
// The pending events are cleared only after the transaction committed. Any error up to and including
// the commit leaves them in place, so Commit can be called again on the same aggregate.
// A returned ErrSubscriberFailure means the events are durable but some subscribers failed.
func (u *UnitOfWork[A]) Commit(ctx context.Context, aggregate A) error {
	if !aggregate.Root().HasPendingEvents() {
		return nil
	}

	tx, err := u.store.BeginTransaction(ctx)
	if err != nil {
		return err
	}

	batch, err := u.prepare(ctx, tx, aggregate)
	if err != nil {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && u.settings.logger != nil {
			u.settings.logger.Warn(logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}

		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}

	aggregate.Root().ClearPendingEvents()

	return u.dispatcher.Publish(ctx, batch)
}

func (u *UnitOfWork[A]) prepare(ctx context.Context, tx eventstore.Transaction, aggregate A) (Batch, error) {
	if err := u.repository.Append(ctx, tx, aggregate); err != nil {
		return Batch{}, err
	}

	return u.dispatcher.stage(ctx, tx, aggregate)
}

// Execute loads the aggregate, hands it to decide for raising events, and commits the result.
//
// If the aggregate does not exist yet decide receives the zero value and found=false, and is expected
// to return the newly created aggregate. With WithConflictRetry the whole load-decide-commit cycle
// is retried on ErrVersionConflict. Other errors are returned immediately.
func (u *UnitOfWork[A]) Execute(
	ctx context.Context,
	aggregateID string,
	decide func(ctx context.Context, aggregate A, found bool) (A, error),
) (A, error) {
	attempt := 0

	operation := func() (A, error) {
		attempt++

		aggregate, err := u.loadDecideCommit(ctx, aggregateID, decide)
		if err == nil {
			return aggregate, nil
		}

		if errors.Is(err, eventstore.ErrVersionConflict) && u.settings.conflictBackOff != nil {
			if u.settings.logger != nil {
				u.settings.logger.Info(logMsgConflictRetrying, logAttrAttempt, attempt)
			}

			return aggregate, err
		}

		return aggregate, backoff.Permanent(err)
	}

	if u.settings.conflictBackOff == nil {
		return operation()
	}

	return backoff.RetryWithData(operation, backoff.WithContext(u.settings.conflictBackOff(), ctx))
}

func (u *UnitOfWork[A]) loadDecideCommit(
	ctx context.Context,
	aggregateID string,
	decide func(ctx context.Context, aggregate A, found bool) (A, error),
) (A, error) {
	aggregate, found, err := u.repository.GetByID(ctx, aggregateID)
	if err != nil {
		return aggregate, err
	}

	aggregate, err = decide(ctx, aggregate, found)
	if err != nil {
		return aggregate, err
	}

	return aggregate, u.Commit(ctx, aggregate)
}
