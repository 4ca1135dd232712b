package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/postgresengine/internal/adapters"
)

// ErrInvalidOutboxMessage is returned for outbox messages without id or type name, or already processed ones.
var ErrInvalidOutboxMessage = fmt.Errorf("%w: invalid outbox message", domain.ErrInvalidArgument)

// OutboxStore writes and relays outbox messages in the transactions of its EventStore.
type OutboxStore struct {
	store *EventStore
}

// RegisterEventToNotify inserts the message inside tx, so it becomes durable together with the appended records.
func (o *OutboxStore) RegisterEventToNotify(
	ctx context.Context,
	tx eventstore.Transaction,
	message eventstore.OutboxMessage,
) error {
	es := o.store

	pgTx, err := es.ownTransaction(tx)
	if err != nil {
		return err
	}

	switch {
	case message.ID == uuid.Nil:
		return errors.Join(ErrInvalidOutboxMessage, errors.New("empty id"))
	case message.TypeName == "":
		return errors.Join(ErrInvalidOutboxMessage, errors.New("empty type name"))
	case message.ProcessedOn != nil:
		return errors.Join(ErrInvalidOutboxMessage, errors.New("message is already processed"))
	}

	ctx, tracing := es.startOutboxTracing(ctx, spanNameOutboxRegister)

	sqlQuery, err := es.buildInsertOutboxQuery(message)
	if err != nil {
		es.logErrorContext(ctx, logMsgBuildQueryFailed, err)
		tracing.finishError(errTypeBuildQuery)

		return err
	}

	_, duration, err := pgTx.exec(ctx, sqlQuery)
	if err != nil {
		es.logErrorContext(ctx, logMsgDBExecFailed, err, logAttrEventType, message.TypeName)
		es.recordErrorMetricsContext(ctx, logActionRegisterOutbox, errorTypeOf(err))
		tracing.finishError(errorTypeOf(err))

		return es.storageFailure(ctx, err)
	}

	es.logQueryWithDurationContext(ctx, sqlQuery, logActionRegisterOutbox, duration)
	es.logOperationContext(ctx, logMsgOutboxRegistered, logAttrEventType, message.TypeName)
	tracing.finishSuccess(duration, 1)

	return nil
}

// BeginTransaction starts a transaction on the primary.
func (o *OutboxStore) BeginTransaction(ctx context.Context) (eventstore.Transaction, error) {
	return o.store.BeginTransaction(ctx)
}

// FetchUnprocessed returns up to limit unprocessed messages, oldest first.
// The rows stay locked until tx resolves, concurrent relays skip them.
func (o *OutboxStore) FetchUnprocessed(
	ctx context.Context,
	tx eventstore.Transaction,
	limit int,
) (eventstore.OutboxMessages, error) {
	es := o.store

	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be at least 1", domain.ErrInvalidArgument)
	}

	pgTx, err := es.ownTransaction(tx)
	if err != nil {
		return nil, err
	}

	ctx, tracing := es.startOutboxTracing(ctx, spanNameOutboxFetch)

	sqlQuery, err := es.buildSelectUnprocessedQuery(limit)
	if err != nil {
		es.logErrorContext(ctx, logMsgBuildQueryFailed, err)
		tracing.finishError(errTypeBuildQuery)

		return nil, err
	}

	var messages eventstore.OutboxMessages

	duration, err := pgTx.query(ctx, sqlQuery, func(rows adapters.DBRows) error {
		var scanErr error
		messages, scanErr = es.scanOutboxMessages(ctx, rows)

		return scanErr
	})
	if err != nil {
		es.logErrorContext(ctx, logMsgDBQueryFailed, err)
		es.recordErrorMetricsContext(ctx, logActionFetchOutbox, errorTypeOf(err))
		tracing.finishError(errorTypeOf(err))

		return nil, es.storageFailure(ctx, err)
	}

	es.logQueryWithDurationContext(ctx, sqlQuery, logActionFetchOutbox, duration)
	es.logOperationContext(ctx, logMsgOutboxFetched, logAttrMessageCount, len(messages))
	tracing.finishSuccess(duration, len(messages))

	return messages, nil
}

// MarkProcessed sets processed_on for the given messages inside tx.
// Messages that are already processed keep their original processed_on.
func (o *OutboxStore) MarkProcessed(
	ctx context.Context,
	tx eventstore.Transaction,
	ids []uuid.UUID,
	processedOn time.Time,
) error {
	es := o.store

	pgTx, err := es.ownTransaction(tx)
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		return nil
	}

	ctx, tracing := es.startOutboxTracing(ctx, spanNameOutboxMark)

	sqlQuery, err := es.buildMarkProcessedQuery(ids, processedOn)
	if err != nil {
		es.logErrorContext(ctx, logMsgBuildQueryFailed, err)
		tracing.finishError(errTypeBuildQuery)

		return err
	}

	rowsAffected, duration, err := pgTx.exec(ctx, sqlQuery)
	if err != nil {
		es.logErrorContext(ctx, logMsgDBExecFailed, err)
		es.recordErrorMetricsContext(ctx, logActionMarkOutbox, errorTypeOf(err))
		tracing.finishError(errorTypeOf(err))

		return es.storageFailure(ctx, err)
	}

	es.logQueryWithDurationContext(ctx, sqlQuery, logActionMarkOutbox, duration)
	es.logOperationContext(ctx, logMsgOutboxMarked, logAttrMessageCount, len(ids), logAttrRowsAffected, rowsAffected)
	tracing.finishSuccess(duration, int(rowsAffected))

	return nil
}

func (es *EventStore) scanOutboxMessages(ctx context.Context, rows adapters.DBRows) (eventstore.OutboxMessages, error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			es.logWarnContext(ctx, logMsgCloseRowsFailed, closeErr)
		}
	}()

	messages := make(eventstore.OutboxMessages, 0)

	for rows.Next() {
		var (
			id          string
			processedOn sql.NullTime
			message     eventstore.OutboxMessage
		)

		if err := rows.Scan(&id, &message.OccurredOn, &message.TypeName, &message.SerializedPayload, &processedOn); err != nil {
			es.logErrorContext(ctx, logMsgScanRowFailed, err)
			return nil, err
		}

		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", errMsgInvalidStoredOutboxID, id, err)
		}

		message.ID = parsed
		message.OccurredOn = message.OccurredOn.UTC()

		if processedOn.Valid {
			processed := processedOn.Time.UTC()
			message.ProcessedOn = &processed
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}
