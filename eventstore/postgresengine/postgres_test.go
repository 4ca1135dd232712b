package postgresengine_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/memoryengine"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/postgresengine"
	"github.com/AntonStoeckl/aggregate-eventstore-go/testutil/observability/testdoubles"
	"github.com/AntonStoeckl/aggregate-eventstore-go/testutil/postgresengine/helper/postgreswrapper"
)

func givenStore(t *testing.T, options ...postgresengine.Option) *postgresengine.EventStore {
	t.Helper()

	wrapper := postgreswrapper.CreateWrapperWithTestConfig(t, options...)
	t.Cleanup(wrapper.Close)
	postgreswrapper.CleanUp(t, wrapper)

	return wrapper.GetEventStore()
}

func givenStreamKey() string {
	return "BookCopy" + eventstore.StreamKeySeparator + uuid.NewString()
}

func givenRecord(t *testing.T, streamKey string, version int, payload string) eventstore.EventRecord {
	t.Helper()

	record, err := eventstore.BuildEventRecord(
		streamKey,
		version,
		"BookCopyLentToReader",
		time.Date(2025, 3, 4, 5, 6, 7, 123456000, time.UTC).Add(time.Duration(version)*time.Second),
		1,
		payload,
	)
	require.NoError(t, err, "error in arranging test data")

	return record
}

func givenRecordsWereCommitted(t *testing.T, ctx context.Context, es *postgresengine.EventStore, records ...eventstore.EventRecord) {
	t.Helper()

	tx, err := es.BeginTransaction(ctx)
	require.NoError(t, err, "error in arranging test data")

	for _, record := range records {
		require.NoError(t, es.Append(ctx, tx, record), "error in arranging test data")
	}

	require.NoError(t, tx.Commit(ctx), "error in arranging test data")
}

func Test_NewEventStore_When_Database_Is_Nil_Then_Fails(t *testing.T) {
	// act
	_, errPGX := postgresengine.NewEventStoreFromPGXPool(nil)
	_, errSQL := postgresengine.NewEventStoreFromSQLDB(nil)
	_, errSQLX := postgresengine.NewEventStoreFromSQLX(nil)
	_, errReplica := postgresengine.NewEventStoreFromSQLDBAndReplica(nil, nil)

	// assert
	assert.ErrorIs(t, errPGX, eventstore.ErrNilDatabaseConnection)
	assert.ErrorIs(t, errSQL, eventstore.ErrNilDatabaseConnection)
	assert.ErrorIs(t, errSQLX, eventstore.ErrNilDatabaseConnection)
	assert.ErrorIs(t, errReplica, eventstore.ErrNilDatabaseConnection)
}

func Test_Append_And_LoadStream_Return_Records_In_Version_Order(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es := givenStore(t)

	// arrange
	streamKey := givenStreamKey()
	first := givenRecord(t, streamKey, 1, `{"b": 1, "a": "x"}`)
	second := givenRecord(t, streamKey, 2, `{"readerId":"r-1"}`)
	givenRecordsWereCommitted(t, ctx, es, givenRecord(t, givenStreamKey(), 1, `{}`))

	// act
	givenRecordsWereCommitted(t, ctx, es, first, second)
	records, err := es.LoadStream(ctx, streamKey)

	// assert
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0])
	assert.Equal(t, second, records[1])
	assert.Equal(t, `{"b": 1, "a": "x"}`, records[0].Payload, "payload must be stored byte for byte")
}

func Test_LoadStream_When_Stream_Does_Not_Exist_Then_Returns_Empty_Result(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es := givenStore(t)

	// act
	records, err := es.LoadStream(ctx, givenStreamKey())

	// assert
	require.NoError(t, err)
	assert.Empty(t, records)
}

func Test_Append_When_Version_Does_Not_Continue_The_Stream_Then_Reports_Conflict(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es := givenStore(t)

	// arrange
	streamKey := givenStreamKey()
	givenRecordsWereCommitted(t, ctx, es, givenRecord(t, streamKey, 1, `{}`))

	for _, version := range []int{1, 3} {
		t.Run(fmt.Sprintf("version %d", version), func(t *testing.T) {
			tx, err := es.BeginTransaction(ctx)
			require.NoError(t, err)
			defer func() { _ = tx.Rollback(ctx) }()

			// act
			err = es.Append(ctx, tx, givenRecord(t, streamKey, version, `{}`))

			// assert
			assert.ErrorIs(t, err, eventstore.ErrVersionConflict)
		})
	}
}

func Test_Append_When_Writers_Race_For_The_Same_Version_Then_Exactly_One_Wins(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	es := givenStore(t)

	// arrange
	const writers = 5
	streamKey := givenStreamKey()
	givenRecordsWereCommitted(t, ctx, es, givenRecord(t, streamKey, 1, `{}`))

	candidates := make([]eventstore.EventRecord, writers)
	for i := range candidates {
		candidates[i] = givenRecord(t, streamKey, 2, fmt.Sprintf(`{"writer":%d}`, i))
	}

	var succeeded, conflicted atomic.Int32
	var group errgroup.Group

	// act
	for _, candidate := range candidates {
		group.Go(func() error {
			tx, err := es.BeginTransaction(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = tx.Rollback(ctx) }()

			err = es.Append(ctx, tx, candidate)
			if err == nil {
				err = tx.Commit(ctx)
			}

			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, eventstore.ErrVersionConflict):
				conflicted.Add(1)
			default:
				return err
			}

			return nil
		})
	}

	// assert
	require.NoError(t, group.Wait())
	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(writers-1), conflicted.Load())

	records, err := es.LoadStream(ctx, streamKey)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func Test_Rollback_Discards_Appended_Records(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es := givenStore(t)

	// arrange
	streamKey := givenStreamKey()
	tx, err := es.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, es.Append(ctx, tx, givenRecord(t, streamKey, 1, `{}`)))

	// act
	errRollback := tx.Rollback(ctx)
	errSecondRollback := tx.Rollback(ctx)
	errCommit := tx.Commit(ctx)

	// assert
	assert.NoError(t, errRollback)
	assert.NoError(t, errSecondRollback)
	assert.ErrorIs(t, errCommit, eventstore.ErrTransactionClosed)

	records, err := es.LoadStream(ctx, streamKey)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func Test_Commit_When_Transaction_Is_Committed_Then_Reports_Closed(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es := givenStore(t)

	// arrange
	tx, err := es.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, es.Append(ctx, tx, givenRecord(t, givenStreamKey(), 1, `{}`)))
	require.NoError(t, tx.Commit(ctx))

	// act
	errCommit := tx.Commit(ctx)
	errRollback := tx.Rollback(ctx)

	// assert
	assert.ErrorIs(t, errCommit, eventstore.ErrTransactionClosed)
	assert.NoError(t, errRollback)
}

func Test_Append_When_Transaction_Belongs_To_Another_Store_Then_Fails(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es := givenStore(t)

	// arrange
	memoryStore, err := memoryengine.NewEventStore()
	require.NoError(t, err)
	foreignTx, err := memoryStore.BeginTransaction(ctx)
	require.NoError(t, err)

	// act
	errAppend := es.Append(ctx, foreignTx, givenRecord(t, givenStreamKey(), 1, `{}`))
	errRegister := es.Outbox().RegisterEventToNotify(ctx, foreignTx, eventstore.OutboxMessage{ID: uuid.New(), TypeName: "X"})

	// assert
	assert.ErrorIs(t, errAppend, eventstore.ErrForeignTransaction)
	assert.ErrorIs(t, errRegister, eventstore.ErrForeignTransaction)
}

func Test_Outbox_Messages_Become_Durable_With_The_Appended_Records(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es := givenStore(t)
	outbox := es.Outbox()

	// arrange
	occurredOn := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	committed := eventstore.OutboxMessage{ID: uuid.New(), OccurredOn: occurredOn, TypeName: "BookCopyLentToReader", SerializedPayload: `{"n": 1}`}
	rolledBack := eventstore.OutboxMessage{ID: uuid.New(), OccurredOn: occurredOn, TypeName: "BookCopyLentToReader", SerializedPayload: `{"n": 2}`}

	tx, err := es.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, es.Append(ctx, tx, givenRecord(t, givenStreamKey(), 1, `{}`)))
	require.NoError(t, outbox.RegisterEventToNotify(ctx, tx, committed))
	require.NoError(t, tx.Commit(ctx))

	otherTx, err := es.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, outbox.RegisterEventToNotify(ctx, otherTx, rolledBack))
	require.NoError(t, otherTx.Rollback(ctx))

	// act
	relayTx, err := outbox.BeginTransaction(ctx)
	require.NoError(t, err)
	defer func() { _ = relayTx.Rollback(ctx) }()
	messages, err := outbox.FetchUnprocessed(ctx, relayTx, 10)

	// assert
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, committed, messages[0])
}

func Test_Outbox_MarkProcessed_Removes_Messages_From_Unprocessed(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es := givenStore(t)
	outbox := es.Outbox()

	// arrange
	var ids []uuid.UUID
	tx, err := es.BeginTransaction(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		message := eventstore.OutboxMessage{
			ID:                uuid.New(),
			OccurredOn:        time.Date(2025, 3, 4, 5, 6, i, 0, time.UTC),
			TypeName:          "BookCopyReturnedByReader",
			SerializedPayload: `{}`,
		}
		ids = append(ids, message.ID)
		require.NoError(t, outbox.RegisterEventToNotify(ctx, tx, message))
	}
	require.NoError(t, tx.Commit(ctx))

	// act
	markTx, err := outbox.BeginTransaction(ctx)
	require.NoError(t, err)
	require.NoError(t, outbox.MarkProcessed(ctx, markTx, ids[:2], time.Now()))
	require.NoError(t, outbox.MarkProcessed(ctx, markTx, nil, time.Now()))
	require.NoError(t, markTx.Commit(ctx))

	fetchTx, err := outbox.BeginTransaction(ctx)
	require.NoError(t, err)
	defer func() { _ = fetchTx.Rollback(ctx) }()
	remaining, err := outbox.FetchUnprocessed(ctx, fetchTx, 10)

	// assert
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, ids[2], remaining[0].ID)
	assert.False(t, remaining[0].IsProcessed())
}

func Test_Outbox_FetchUnprocessed_Skips_Messages_Locked_By_Another_Relay(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es := givenStore(t)
	outbox := es.Outbox()

	// arrange
	tx, err := es.BeginTransaction(ctx)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, outbox.RegisterEventToNotify(ctx, tx, eventstore.OutboxMessage{
			ID:                uuid.New(),
			OccurredOn:        time.Date(2025, 3, 4, 5, 6, i, 0, time.UTC),
			TypeName:          "BookCopyAddedToCirculation",
			SerializedPayload: `{}`,
		}))
	}
	require.NoError(t, tx.Commit(ctx))

	firstRelayTx, err := outbox.BeginTransaction(ctx)
	require.NoError(t, err)
	defer func() { _ = firstRelayTx.Rollback(ctx) }()
	firstBatch, err := outbox.FetchUnprocessed(ctx, firstRelayTx, 3)
	require.NoError(t, err)

	// act
	secondRelayTx, err := outbox.BeginTransaction(ctx)
	require.NoError(t, err)
	defer func() { _ = secondRelayTx.Rollback(ctx) }()
	secondBatch, err := outbox.FetchUnprocessed(ctx, secondRelayTx, 3)

	// assert
	require.NoError(t, err)
	assert.Len(t, firstBatch, 3)
	require.Len(t, secondBatch, 1)
	assert.NotContains(t, firstBatch, secondBatch[0])
}

func Test_Outbox_Rejects_Invalid_Input(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	es := givenStore(t)
	outbox := es.Outbox()

	// arrange
	tx, err := es.BeginTransaction(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()
	processedOn := time.Now()

	// act
	errNoID := outbox.RegisterEventToNotify(ctx, tx, eventstore.OutboxMessage{TypeName: "X"})
	errNoType := outbox.RegisterEventToNotify(ctx, tx, eventstore.OutboxMessage{ID: uuid.New()})
	errProcessed := outbox.RegisterEventToNotify(ctx, tx, eventstore.OutboxMessage{ID: uuid.New(), TypeName: "X", ProcessedOn: &processedOn})
	_, errLimit := outbox.FetchUnprocessed(ctx, tx, 0)

	// assert
	assert.ErrorIs(t, errNoID, postgresengine.ErrInvalidOutboxMessage)
	assert.ErrorIs(t, errNoType, postgresengine.ErrInvalidOutboxMessage)
	assert.ErrorIs(t, errProcessed, postgresengine.ErrInvalidOutboxMessage)
	assert.Error(t, errLimit)
}

func Test_Observability_Records_Logs_Metrics_And_Spans(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logHandler := testdoubles.NewLogHandlerSpy(false)
	metrics := testdoubles.NewMetricsCollectorSpy()
	tracing := testdoubles.NewTracingCollectorSpy()
	es := givenStore(
		t,
		postgresengine.WithLogger(slog.New(logHandler)),
		postgresengine.WithMetrics(metrics),
		postgresengine.WithTracing(tracing),
	)

	// arrange
	streamKey := givenStreamKey()
	givenRecordsWereCommitted(t, ctx, es, givenRecord(t, streamKey, 1, `{}`))

	// act
	_, errLoad := es.LoadStream(ctx, streamKey)
	tx, err := es.BeginTransaction(ctx)
	require.NoError(t, err)
	errConflict := es.Append(ctx, tx, givenRecord(t, streamKey, 1, `{}`))
	_ = tx.Rollback(ctx)

	// assert
	require.NoError(t, errLoad)
	assert.ErrorIs(t, errConflict, eventstore.ErrVersionConflict)

	assert.True(t, logHandler.HasMessage(slog.LevelInfo, "record appended"))
	assert.True(t, logHandler.HasMessage(slog.LevelInfo, "stream loaded"))
	assert.True(t, logHandler.HasMessage(slog.LevelInfo, "version conflict detected"))
	assert.True(t, logHandler.HasMessageWithAttr("stream loaded", "record_count"))

	assert.True(t, metrics.HasDurationWithLabel("eventstore_append_duration_seconds", "status", eventstore.StatusSuccess))
	assert.True(t, metrics.HasDurationWithLabel("eventstore_load_duration_seconds", "status", eventstore.StatusSuccess))
	assert.True(t, metrics.HasDurationWithLabel("eventstore_commit_duration_seconds", "status", eventstore.StatusSuccess))
	assert.Len(t, metrics.CounterRecords("eventstore_version_conflicts_total"), 1)
	require.Len(t, metrics.ValueRecords("eventstore_records_loaded"), 1)
	assert.InDelta(t, 1.0, metrics.ValueRecords("eventstore_records_loaded")[0].Value, 0.0001)

	assert.True(t, tracing.HasFinishedSpanWithStatus("eventstore.append", eventstore.StatusSuccess))
	assert.True(t, tracing.HasFinishedSpanWithStatus("eventstore.append", eventstore.StatusError))
	assert.True(t, tracing.HasFinishedSpanWithStatus("eventstore.load_stream", eventstore.StatusSuccess))
	assert.True(t, tracing.HasFinishedSpanWithStatus("eventstore.commit", eventstore.StatusSuccess))
}

func Test_ContextualLogger_Is_Preferred_Over_Logger(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logHandler := testdoubles.NewLogHandlerSpy(false)
	contextualLogger := testdoubles.NewContextualLoggerSpy()
	es := givenStore(
		t,
		postgresengine.WithLogger(slog.New(logHandler)),
		postgresengine.WithContextualLogger(contextualLogger),
	)

	// act
	_, err := es.LoadStream(ctx, givenStreamKey())

	// assert
	require.NoError(t, err)
	assert.True(t, contextualLogger.HasMessage("info", "stream loaded"))
	assert.False(t, logHandler.HasMessage(slog.LevelInfo, "stream loaded"))
}
