// Package observable instruments command handlers with metrics, tracing and logging while the
// handlers themselves keep only the use case logic.
//
// The wrapper is applied at wiring time, not hidden inside factory functions:
//
//	coreHandler := lendbookcopytoreader.NewCommandHandler(unitOfWork, policy)
//
//	observableHandler, err := observable.NewCommandWrapper[lendbookcopytoreader.Command](
//		coreHandler,
//		observable.WithCommandMetrics[lendbookcopytoreader.Command](metricsCollector),
//		observable.WithCommandTracing[lendbookcopytoreader.Command](tracingCollector),
//		observable.WithCommandContextualLogging[lendbookcopytoreader.Command](contextualLogger),
//	)
//
//	err = observableHandler.Handle(ctx, command)
//
// Every concern is optional. Business rule violations are reported with status "rejected",
// version conflicts with "conflict", cancellation with "canceled".
package observable
