package postgresengine

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

// isUniqueViolation recognizes unique index violations reported by pgx and by lib/pq.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolationSQLState
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolationSQLState
	}

	return false
}

// errorTypeOf classifies an error for metric labels and span attributes.
func errorTypeOf(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return errTypeCanceled
	case errors.Is(err, eventstore.ErrTransactionClosed):
		return errTypeTransaction
	case isUniqueViolation(err):
		return errTypeVersionConflict
	default:
		return errTypeDatabase
	}
}

// storageFailure wraps a database error into eventstore.ErrStorageFailure.
// Closed transactions and cancellations of ctx keep their own identity in the joined error.
func (es *EventStore) storageFailure(ctx context.Context, err error) error {
	if errors.Is(err, eventstore.ErrTransactionClosed) {
		return err
	}

	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		return errors.Join(eventstore.ErrStorageFailure, err, ctxErr)
	}

	return errors.Join(eventstore.ErrStorageFailure, err)
}
