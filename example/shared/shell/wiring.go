package shell

import (
	"github.com/cenkalti/backoff/v4"

	"github.com/AntonStoeckl/aggregate-eventstore-go/dispatching"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/core"
	"github.com/AntonStoeckl/aggregate-eventstore-go/repository"
	"github.com/AntonStoeckl/aggregate-eventstore-go/serialization"
)

// BookCopyUnitOfWork is the unit of work all command handlers of the example run in.
type BookCopyUnitOfWork = dispatching.UnitOfWork[*core.BookCopy]

// WiringOptions carries the optional collaborators of NewBookCopyUnitOfWork.
type WiringOptions struct {
	Logger           Logger
	ContextualLogger ContextualLogger
	Metrics          MetricsCollector
	Tracing          TracingCollector
	// ConflictBackOff enables retries of the whole command on version conflicts.
	ConflictBackOff func() backoff.BackOff
}

// NewBookCopyUnitOfWork wires serializer, repository, dispatcher and unit of work for BookCopy aggregates.
// All BookCopy events are routed, subscribers must already be registered in routes.
// A nil outbox disables the outbox.
func NewBookCopyUnitOfWork(
	store eventstore.EventStore,
	outbox eventstore.OutboxStore,
	routes *dispatching.Routes,
	opts WiringOptions,
) (*BookCopyUnitOfWork, error) {
	serializer, err := serialization.NewSerializer(core.AllEvents())
	if err != nil {
		return nil, err
	}

	dispatching.Route[core.BookCopyAddedToCirculation](routes)
	dispatching.Route[core.BookCopyLentToReader](routes)
	dispatching.Route[core.BookCopyReturnedByReader](routes)
	dispatching.Route[core.BookCopyRemovedFromCirculation](routes)

	repo, err := repository.New(
		core.BookCopyTypeName,
		core.NewBookCopy,
		store,
		serializer,
		repository.WithLogger(opts.Logger),
		repository.WithContextualLogger(opts.ContextualLogger),
	)
	if err != nil {
		return nil, err
	}

	outboxOption := dispatching.WithoutOutbox()
	if outbox != nil {
		outboxOption = dispatching.WithOutbox(outbox)
	}

	dispatcher, err := dispatching.NewDispatcher(
		serializer,
		routes,
		outboxOption,
		dispatching.WithLogger(opts.Logger),
		dispatching.WithContextualLogger(opts.ContextualLogger),
		dispatching.WithMetrics(opts.Metrics),
		dispatching.WithTracing(opts.Tracing),
	)
	if err != nil {
		return nil, err
	}

	uowOptions := []dispatching.UnitOfWorkOption{dispatching.WithUnitOfWorkLogger(opts.Logger)}
	if opts.ConflictBackOff != nil {
		uowOptions = append(uowOptions, dispatching.WithConflictRetry(opts.ConflictBackOff))
	}

	return dispatching.NewUnitOfWork(store, repo, dispatcher, uowOptions...)
}
