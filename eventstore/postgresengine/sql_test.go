package postgresengine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

func newStoreForQueries(t *testing.T, options ...Option) *EventStore {
	t.Helper()

	es, err := newEventStore(nil, options)
	require.NoError(t, err)

	return es
}

func Test_BuildInsertEventQuery_Guards_On_The_Current_Stream_Version(t *testing.T) {
	// setup
	es := newStoreForQueries(t)

	// arrange
	record, err := eventstore.BuildEventRecord(
		"BookCopy_42",
		3,
		"BookCopyLentToReader",
		time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		1,
		`{"readerId":"r-1"}`,
	)
	require.NoError(t, err)

	// act
	sqlQuery, err := es.buildInsertEventQuery(record)

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `WITH context AS (SELECT MAX("aggregate_version") AS "max_version" FROM "events"`)
	assert.Contains(t, sqlQuery, `WHERE ("stream_key" = 'BookCopy_42')`)
	assert.Contains(t, sqlQuery, `INSERT INTO "events" ("event_id", "stream_key", "aggregate_version"`)
	assert.Contains(t, sqlQuery, `COALESCE("max_version", 0) = 2`)
	assert.Contains(t, sqlQuery, `'{"readerId":"r-1"}'::json`)
	assert.Contains(t, sqlQuery, `'`+record.EventID.String()+`'::uuid`)
}

func Test_BuildSelectStreamQuery_Orders_By_Version(t *testing.T) {
	// setup
	es := newStoreForQueries(t, WithEventsTableName("library_events"))

	// act
	sqlQuery, err := es.buildSelectStreamQuery("BookCopy_42")

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `FROM "library_events"`)
	assert.Contains(t, sqlQuery, `WHERE ("stream_key" = 'BookCopy_42')`)
	assert.Contains(t, sqlQuery, `ORDER BY "aggregate_version" ASC`)
	assert.Contains(t, sqlQuery, `"payload"::text`)
}

func Test_BuildSelectUnprocessedQuery_Skips_Locked_Rows(t *testing.T) {
	// setup
	es := newStoreForQueries(t)

	// act
	sqlQuery, err := es.buildSelectUnprocessedQuery(25)

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `FROM "outbox_messages"`)
	assert.Contains(t, sqlQuery, `WHERE ("processed_on" IS NULL)`)
	assert.Contains(t, sqlQuery, `ORDER BY "occurred_on" ASC, "id" ASC`)
	assert.Contains(t, sqlQuery, `LIMIT 25`)
	assert.Contains(t, sqlQuery, `FOR UPDATE SKIP LOCKED`)
}

func Test_BuildMarkProcessedQuery_Keeps_Existing_Processed_On(t *testing.T) {
	// setup
	es := newStoreForQueries(t, WithOutboxTableName("library_outbox"))
	first, second := uuid.New(), uuid.New()

	// act
	sqlQuery, err := es.buildMarkProcessedQuery(
		[]uuid.UUID{first, second},
		time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	)

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `UPDATE "library_outbox" SET "processed_on"=`)
	assert.Contains(t, sqlQuery, `("id" IN ('`+first.String()+`', '`+second.String()+`'))`)
	assert.Contains(t, sqlQuery, `("processed_on" IS NULL)`)
}

func Test_BuildInsertOutboxQuery(t *testing.T) {
	// setup
	es := newStoreForQueries(t)
	id := uuid.New()

	// act
	sqlQuery, err := es.buildInsertOutboxQuery(eventstore.OutboxMessage{
		ID:                id,
		OccurredOn:        time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		TypeName:          "BookCopyLentToReader",
		SerializedPayload: `{"readerId":"r-1"}`,
	})

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `INSERT INTO "outbox_messages" ("id", "occurred_on", "type_name", "payload")`)
	assert.Contains(t, sqlQuery, `'`+id.String()+`'::uuid`)
	assert.Contains(t, sqlQuery, `'BookCopyLentToReader'`)
	assert.Contains(t, sqlQuery, `'{"readerId":"r-1"}'::json`)
}

func Test_Schema_Uses_The_Given_Table_Names(t *testing.T) {
	// act
	ddl := Schema("library_events", "library_outbox")

	// assert
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS library_events")
	assert.Contains(t, ddl, "CONSTRAINT library_events_stream_version_key UNIQUE (stream_key, aggregate_version)")
	assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS library_outbox")
	assert.Contains(t, ddl, "WHERE processed_on IS NULL")
	assert.Contains(t, DefaultSchema(), "CREATE TABLE IF NOT EXISTS events")
}

func Test_Options_Reject_Empty_Table_Names(t *testing.T) {
	// act
	_, errEvents := newEventStore(nil, []Option{WithEventsTableName("")})
	_, errOutbox := newEventStore(nil, []Option{WithOutboxTableName("")})

	// assert
	assert.ErrorIs(t, errEvents, eventstore.ErrEmptyTableNameSupplied)
	assert.ErrorIs(t, errOutbox, eventstore.ErrEmptyTableNameSupplied)
}

func Test_IsUniqueViolation_Recognizes_Both_Drivers(t *testing.T) {
	// arrange
	pgxErr := fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"})
	pqErr := fmt.Errorf("exec: %w", &pq.Error{Code: "23505"})
	otherErr := &pgconn.PgError{Code: "40001"}

	// assert
	assert.True(t, isUniqueViolation(pgxErr))
	assert.True(t, isUniqueViolation(pqErr))
	assert.False(t, isUniqueViolation(otherErr))
	assert.False(t, isUniqueViolation(assert.AnError))
	assert.Equal(t, errTypeVersionConflict, errorTypeOf(pgxErr))
	assert.Equal(t, errTypeCanceled, errorTypeOf(context.Canceled))
	assert.Equal(t, errTypeDatabase, errorTypeOf(otherErr))
}
