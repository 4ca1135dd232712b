package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/postgresengine/internal/adapters"
)

const (
	defaultEventsTableName      = "events"
	defaultOutboxTableName      = "outbox_messages"
	logMsgBuildQueryFailed      = "failed to build sql statement"
	logMsgDBQueryFailed         = "database query execution failed"
	logMsgDBExecFailed          = "database execution failed"
	logMsgBeginTxFailed         = "failed to begin database transaction"
	logMsgCommitFailed          = "failed to commit database transaction"
	logMsgRollbackFailed        = "failed to roll back database transaction"
	logMsgCloseRowsFailed       = "failed to close database rows"
	logMsgScanRowFailed         = "failed to scan database row"
	logMsgRowsAffectedFailed    = "failed to get rows affected count"
	logMsgStreamLoaded          = "stream loaded"
	logMsgRecordAppended        = "record appended"
	logMsgVersionConflict       = "version conflict detected"
	logMsgOutboxRegistered      = "outbox message registered"
	logMsgOutboxFetched         = "unprocessed outbox messages fetched"
	logMsgOutboxMarked          = "outbox messages marked processed"
	logMsgSQLExecuted           = "executed sql for: "
	logMsgOperation             = "eventstore operation: "
	logAttrError                = "error"
	logAttrQuery                = "query"
	logAttrStreamKey            = "stream_key"
	logAttrVersion              = "aggregate_version"
	logAttrEventType            = "event_type"
	logAttrRecordCount          = "record_count"
	logAttrMessageCount         = "message_count"
	logAttrDurationMS           = "duration_ms"
	logAttrRowsAffected         = "rows_affected"
	logActionLoad               = "load"
	logActionAppend             = "append"
	logActionCommit             = "commit"
	logActionRegisterOutbox     = "register_outbox"
	logActionFetchOutbox        = "fetch_outbox"
	logActionMarkOutbox         = "mark_outbox"
	errTypeBuildQuery           = "build_query"
	errTypeDatabase             = "database"
	errTypeScan                 = "scan"
	errTypeVersionConflict      = "version_conflict"
	errTypeTransaction          = "transaction"
	errTypeCanceled             = "canceled"
	uniqueViolationSQLState     = "23505"
	errMsgInvalidStoredEventID  = "stored event id is not a uuid"
	errMsgInvalidStoredOutboxID = "stored outbox message id is not a uuid"
)

type (
	sqlQueryString = string
	queryDuration  = time.Duration
)

// EventStore is the PostgreSQL implementation of eventstore.EventStore.
// It also serves as eventstore.OutboxStore and eventstore.OutboxRelayStore through Outbox.
type EventStore struct {
	db               adapters.DBAdapter
	eventsTableName  string
	outboxTableName  string
	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector
}

// NewEventStoreFromPGXPool creates a new EventStore using a pgx Pool with optional configuration.
func NewEventStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapter(db), options)
}

// NewEventStoreFromPGXPoolAndReplica creates a new EventStore with a primary and a replica pgx Pool.
func NewEventStoreFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*EventStore, error) {
	if db == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewPGXAdapterWithReplica(db, replica), options)
}

// NewEventStoreFromSQLDB creates a new EventStore using a sql.DB with optional configuration.
func NewEventStoreFromSQLDB(db *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapter(db), options)
}

// NewEventStoreFromSQLDBAndReplica creates a new EventStore with a primary and a replica sql.DB.
func NewEventStoreFromSQLDBAndReplica(db *sql.DB, replica *sql.DB, options ...Option) (*EventStore, error) {
	if db == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLAdapterWithReplica(db, replica), options)
}

// NewEventStoreFromSQLX creates a new EventStore using a sqlx.DB with optional configuration.
func NewEventStoreFromSQLX(db *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapter(db), options)
}

// NewEventStoreFromSQLXAndReplica creates a new EventStore with a primary and a replica sqlx.DB.
func NewEventStoreFromSQLXAndReplica(db *sqlx.DB, replica *sqlx.DB, options ...Option) (*EventStore, error) {
	if db == nil || replica == nil {
		return nil, eventstore.ErrNilDatabaseConnection
	}

	return newEventStore(adapters.NewSQLXAdapterWithReplica(db, replica), options)
}

func newEventStore(db adapters.DBAdapter, options []Option) (*EventStore, error) {
	es := &EventStore{
		db:              db,
		eventsTableName: defaultEventsTableName,
		outboxTableName: defaultOutboxTableName,
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// Outbox returns the outbox view of the store. It shares transactions with the EventStore.
func (es *EventStore) Outbox() *OutboxStore {
	return &OutboxStore{store: es}
}

// BeginTransaction starts a database transaction on the primary.
func (es *EventStore) BeginTransaction(ctx context.Context) (eventstore.Transaction, error) {
	dbTx, err := es.db.BeginTx(ctx)
	if err != nil {
		es.logErrorContext(ctx, logMsgBeginTxFailed, err)
		es.recordErrorMetricsContext(ctx, logActionCommit, errTypeTransaction)

		return nil, es.storageFailure(ctx, err)
	}

	return &transaction{store: es, tx: dbTx}, nil
}

// Append inserts one record inside tx, if and only if it continues its stream.
// A taken position or a version that is not max+1 yields eventstore.ErrVersionConflict.
func (es *EventStore) Append(ctx context.Context, tx eventstore.Transaction, record eventstore.EventRecord) error {
	pgTx, err := es.ownTransaction(tx)
	if err != nil {
		return err
	}

	if err = validateRecord(record); err != nil {
		return err
	}

	ctx, tracing := es.startAppendTracing(ctx, record)
	metrics := es.startAppendMetrics(ctx)

	sqlQuery, err := es.buildInsertEventQuery(record)
	if err != nil {
		es.logErrorContext(ctx, logMsgBuildQueryFailed, err, logAttrStreamKey, record.StreamKey)
		tracing.finishError(errTypeBuildQuery)
		metrics.recordError(errTypeBuildQuery)

		return err
	}

	rowsAffected, duration, err := pgTx.exec(ctx, sqlQuery)
	if err != nil {
		if isUniqueViolation(err) {
			return es.versionConflict(ctx, record, tracing, metrics, err)
		}

		es.logErrorContext(ctx, logMsgDBExecFailed, err, logAttrStreamKey, record.StreamKey)
		tracing.finishError(errorTypeOf(err))
		metrics.recordError(errorTypeOf(err))

		return es.storageFailure(ctx, err)
	}

	es.logQueryWithDurationContext(ctx, sqlQuery, logActionAppend, duration)

	if rowsAffected == 0 {
		return es.versionConflict(ctx, record, tracing, metrics, nil)
	}

	es.logOperationContext(
		ctx,
		logMsgRecordAppended,
		logAttrStreamKey, record.StreamKey,
		logAttrVersion, record.AggregateVersion,
		logAttrEventType, record.EventTypeName,
		logAttrDurationMS, es.toMilliseconds(duration),
	)
	tracing.finishSuccess(duration)
	metrics.recordSuccess(duration)

	return nil
}

// LoadStream returns the committed records of a stream in version order.
// It reads from the replica if one is configured and ctx requests eventual consistency.
func (es *EventStore) LoadStream(ctx context.Context, streamKey string) (eventstore.EventRecords, error) {
	if streamKey == "" {
		return nil, errors.Join(eventstore.ErrInvalidStreamKey, errors.New("empty stream key"))
	}

	ctx, tracing := es.startLoadTracing(ctx, streamKey)
	metrics := es.startLoadMetrics(ctx)

	sqlQuery, err := es.buildSelectStreamQuery(streamKey)
	if err != nil {
		es.logErrorContext(ctx, logMsgBuildQueryFailed, err, logAttrStreamKey, streamKey)
		tracing.finishError(errTypeBuildQuery)
		metrics.recordError(errTypeBuildQuery)

		return nil, err
	}

	start := time.Now()

	rows, err := es.db.Query(ctx, sqlQuery)
	if err != nil {
		es.logErrorContext(ctx, logMsgDBQueryFailed, err, logAttrStreamKey, streamKey)
		tracing.finishError(errorTypeOf(err))
		metrics.recordError(errorTypeOf(err))

		return nil, es.storageFailure(ctx, err)
	}

	records, err := es.scanEventRecords(ctx, rows)
	if err != nil {
		tracing.finishError(errTypeScan)
		metrics.recordError(errTypeScan)

		return nil, es.storageFailure(ctx, err)
	}

	duration := time.Since(start)
	es.logQueryWithDurationContext(ctx, sqlQuery, logActionLoad, duration)
	es.logOperationContext(
		ctx,
		logMsgStreamLoaded,
		logAttrStreamKey, streamKey,
		logAttrRecordCount, len(records),
		logAttrDurationMS, es.toMilliseconds(duration),
	)
	tracing.finishSuccess(duration, len(records))
	metrics.recordSuccess(duration, len(records))

	return records, nil
}

func (es *EventStore) scanEventRecords(ctx context.Context, rows adapters.DBRows) (eventstore.EventRecords, error) {
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			es.logWarnContext(ctx, logMsgCloseRowsFailed, closeErr)
		}
	}()

	records := make(eventstore.EventRecords, 0)

	for rows.Next() {
		var (
			eventID string
			record  eventstore.EventRecord
		)

		err := rows.Scan(
			&eventID,
			&record.StreamKey,
			&record.AggregateVersion,
			&record.EventTypeName,
			&record.OccurredOn,
			&record.PayloadSchemaVersion,
			&record.Payload,
		)
		if err != nil {
			es.logErrorContext(ctx, logMsgScanRowFailed, err)
			return nil, err
		}

		if record.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, fmt.Errorf("%s %q: %w", errMsgInvalidStoredEventID, eventID, err)
		}

		record.OccurredOn = record.OccurredOn.UTC()
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		es.logErrorContext(ctx, logMsgScanRowFailed, err)
		return nil, err
	}

	return records, nil
}

func (es *EventStore) versionConflict(
	ctx context.Context,
	record eventstore.EventRecord,
	tracing *appendTracingObserver,
	metrics *appendMetricsObserver,
	cause error,
) error {
	es.logOperationContext(
		ctx,
		logMsgVersionConflict,
		logAttrStreamKey, record.StreamKey,
		logAttrVersion, record.AggregateVersion,
	)
	tracing.finishError(errTypeVersionConflict)
	metrics.recordConflict()

	conflict := fmt.Errorf("stream %q: version %d is taken or does not continue the stream", record.StreamKey, record.AggregateVersion)
	if cause != nil {
		return errors.Join(eventstore.ErrVersionConflict, conflict, cause)
	}

	return errors.Join(eventstore.ErrVersionConflict, conflict)
}

func (es *EventStore) ownTransaction(tx eventstore.Transaction) (*transaction, error) {
	pgTx, ok := tx.(*transaction)
	if !ok || pgTx == nil || pgTx.store != es {
		return nil, eventstore.ErrForeignTransaction
	}

	return pgTx, nil
}

func validateRecord(record eventstore.EventRecord) error {
	switch {
	case record.EventID == uuid.Nil:
		return fmt.Errorf("%w: record without event id", domain.ErrInvalidArgument)
	case record.StreamKey == "":
		return errors.Join(eventstore.ErrInvalidStreamKey, errors.New("empty stream key"))
	case record.AggregateVersion < 1:
		return eventstore.ErrInvalidAggregateVersion
	case record.EventTypeName == "":
		return eventstore.ErrEmptyEventTypeName
	}

	return nil
}
