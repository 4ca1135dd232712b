package postgresengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/postgresengine/internal/adapters"
)

// transaction wraps a database transaction. The mutex serializes statements, because database
// transactions are not safe for concurrent use.
type transaction struct {
	store    *EventStore
	tx       adapters.DBTx
	mu       sync.Mutex
	resolved bool
}

// Commit makes all statements of the transaction durable.
func (t *transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resolved {
		return eventstore.ErrTransactionClosed
	}

	t.resolved = true

	ctx, tracing := t.store.startCommitTracing(ctx)
	start := time.Now()

	if err := t.tx.Commit(ctx); err != nil {
		if errors.Is(err, adapters.ErrTxDone) {
			tracing.finishError(errTypeTransaction)
			return eventstore.ErrTransactionClosed
		}

		t.store.logErrorContext(ctx, logMsgCommitFailed, err)
		t.store.recordErrorMetricsContext(ctx, logActionCommit, errorTypeOf(err))
		tracing.finishError(errorTypeOf(err))

		if isUniqueViolation(err) {
			return errors.Join(eventstore.ErrVersionConflict, err)
		}

		return t.store.storageFailure(ctx, err)
	}

	duration := time.Since(start)
	t.store.recordDurationMetricsContext(ctx, metricCommitDuration, duration, logActionCommit, eventstore.StatusSuccess)
	tracing.finishSuccess(duration)

	return nil
}

// Rollback discards the transaction. It is a no-op once the transaction is resolved.
func (t *transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resolved {
		return nil
	}

	t.resolved = true

	if err := t.tx.Rollback(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, adapters.ErrTxDone) {
		t.store.logWarnContext(ctx, logMsgRollbackFailed, err)
		return errors.Join(eventstore.ErrStorageFailure, err)
	}

	return nil
}

func (t *transaction) exec(ctx context.Context, sqlQuery sqlQueryString) (int64, queryDuration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resolved {
		return 0, 0, eventstore.ErrTransactionClosed
	}

	start := time.Now()

	result, err := t.tx.Exec(ctx, sqlQuery)
	if err != nil {
		return 0, time.Since(start), err
	}

	duration := time.Since(start)

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		t.store.logErrorContext(ctx, logMsgRowsAffectedFailed, err)
		return 0, duration, err
	}

	return rowsAffected, duration, nil
}

// query runs a statement inside the transaction and hands the rows to scan while the lock is held.
func (t *transaction) query(ctx context.Context, sqlQuery sqlQueryString, scan func(rows adapters.DBRows) error) (queryDuration, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.resolved {
		return 0, eventstore.ErrTransactionClosed
	}

	start := time.Now()

	rows, err := t.tx.Query(ctx, sqlQuery)
	if err != nil {
		return time.Since(start), err
	}

	if err = scan(rows); err != nil {
		return time.Since(start), err
	}

	return time.Since(start), nil
}
