package main

import (
	"log/slog"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/features/command/addbookcopy"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/features/command/lendbookcopytoreader"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/features/command/removebookcopy"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/features/command/returnbookcopyfromreader"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell/observable"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell/readmodel"
)

type handlers struct {
	addBookCopy    shell.CommandHandler[addbookcopy.Command]
	lendBookCopy   shell.CommandHandler[lendbookcopytoreader.Command]
	returnBookCopy shell.CommandHandler[returnbookcopyfromreader.Command]
	removeBookCopy shell.CommandHandler[removebookcopy.Command]
}

func newHandlers(
	unitOfWork *shell.BookCopyUnitOfWork,
	lentBooks *readmodel.LentBooks,
	logger *slog.Logger,
	metrics eventstore.MetricsCollector,
	tracing eventstore.TracingCollector,
) (handlers, error) {
	var (
		h   handlers
		err error
	)

	if h.addBookCopy, err = wrap[addbookcopy.Command](addbookcopy.NewCommandHandler(unitOfWork), logger, metrics, tracing); err != nil {
		return handlers{}, err
	}

	lend := lendbookcopytoreader.NewCommandHandler(unitOfWork, lentBooks)
	if h.lendBookCopy, err = wrap[lendbookcopytoreader.Command](lend, logger, metrics, tracing); err != nil {
		return handlers{}, err
	}

	returnBook := returnbookcopyfromreader.NewCommandHandler(unitOfWork)
	if h.returnBookCopy, err = wrap[returnbookcopyfromreader.Command](returnBook, logger, metrics, tracing); err != nil {
		return handlers{}, err
	}

	if h.removeBookCopy, err = wrap[removebookcopy.Command](removebookcopy.NewCommandHandler(unitOfWork), logger, metrics, tracing); err != nil {
		return handlers{}, err
	}

	return h, nil
}

func wrap[C shell.Command](
	handler shell.CommandHandler[C],
	logger *slog.Logger,
	metrics eventstore.MetricsCollector,
	tracing eventstore.TracingCollector,
) (shell.CommandHandler[C], error) {
	return observable.NewCommandWrapper[C](
		handler,
		observable.WithCommandContextualLogging[C](logger),
		observable.WithCommandMetrics[C](metrics),
		observable.WithCommandTracing[C](tracing),
	)
}
