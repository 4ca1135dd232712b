package memoryengine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

const (
	logMsgCommitted       = "eventstore operation: transaction committed"
	logMsgCommitConflict  = "eventstore operation: commit rejected by version conflict"
	logAttrRecordCount    = "record_count"
	logAttrOutboxCount    = "outbox_count"
	logAttrProcessedCount = "processed_count"
	logAttrError          = "error"
)

// Option defines a functional option for configuring EventStore.
type Option func(*EventStore) error

// WithLogger sets the logger for the EventStore.
func WithLogger(logger eventstore.Logger) Option {
	return func(es *EventStore) error {
		es.logger = logger
		return nil
	}
}

// WithAppendFailureInjector installs a hook that is consulted for every Append.
// A non-nil error from the hook fails the Append with eventstore.ErrStorageFailure.
// It is meant for testing failure paths.
func WithAppendFailureInjector(inject func(record eventstore.EventRecord) error) Option {
	return func(es *EventStore) error {
		es.appendFailure = inject
		return nil
	}
}

// EventStore is an in-memory, transactional event store with an attached outbox.
type EventStore struct {
	mu            sync.RWMutex
	streams       map[string]eventstore.EventRecords
	eventIDs      map[uuid.UUID]struct{}
	outbox        eventstore.OutboxMessages
	outboxIndex   map[uuid.UUID]int
	logger        eventstore.Logger
	appendFailure func(record eventstore.EventRecord) error
}

// NewEventStore creates an empty in-memory EventStore.
func NewEventStore(options ...Option) (*EventStore, error) {
	es := &EventStore{
		streams:     make(map[string]eventstore.EventRecords),
		eventIDs:    make(map[uuid.UUID]struct{}),
		outboxIndex: make(map[uuid.UUID]int),
	}

	for _, option := range options {
		if err := option(es); err != nil {
			return nil, err
		}
	}

	return es, nil
}

// BeginTransaction starts a transaction that buffers all writes until Commit.
func (es *EventStore) BeginTransaction(ctx context.Context) (eventstore.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(eventstore.ErrStorageFailure, err)
	}

	return &transaction{
		store:     es,
		processed: make(map[uuid.UUID]time.Time),
	}, nil
}

// Append buffers a record in tx after checking that it continues its stream.
func (es *EventStore) Append(ctx context.Context, tx eventstore.Transaction, record eventstore.EventRecord) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(eventstore.ErrStorageFailure, err)
	}

	memTx, err := es.ownTransaction(tx)
	if err != nil {
		return err
	}

	if err = validateRecord(record); err != nil {
		return err
	}

	if es.appendFailure != nil {
		if injected := es.appendFailure(record); injected != nil {
			return errors.Join(eventstore.ErrStorageFailure, injected)
		}
	}

	memTx.mu.Lock()
	defer memTx.mu.Unlock()

	if memTx.resolved {
		return eventstore.ErrTransactionClosed
	}

	es.mu.RLock()
	committed := len(es.streams[record.StreamKey])
	es.mu.RUnlock()

	expected := committed + memTx.bufferedFor(record.StreamKey) + 1
	if record.AggregateVersion != expected {
		return errors.Join(
			eventstore.ErrVersionConflict,
			fmt.Errorf("stream %q: expected version %d, got %d", record.StreamKey, expected, record.AggregateVersion),
		)
	}

	memTx.records = append(memTx.records, record)

	return nil
}

// LoadStream returns a copy of the committed records of a stream in version order.
func (es *EventStore) LoadStream(ctx context.Context, streamKey string) (eventstore.EventRecords, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(eventstore.ErrStorageFailure, err)
	}

	es.mu.RLock()
	defer es.mu.RUnlock()

	stream := es.streams[streamKey]
	records := make(eventstore.EventRecords, len(stream))
	copy(records, stream)

	return records, nil
}

// Outbox returns the OutboxStore that shares this store's transactions.
func (es *EventStore) Outbox() *OutboxStore {
	return &OutboxStore{store: es}
}

func (es *EventStore) ownTransaction(tx eventstore.Transaction) (*transaction, error) {
	memTx, ok := tx.(*transaction)
	if !ok || memTx == nil || memTx.store != es {
		return nil, eventstore.ErrForeignTransaction
	}

	return memTx, nil
}

// commit applies a transaction's buffered writes atomically. The caller holds tx.mu.
func (es *EventStore) commit(tx *transaction) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	if err := es.validateCommit(tx); err != nil {
		if es.logger != nil {
			es.logger.Info(logMsgCommitConflict, logAttrError, err.Error())
		}

		return err
	}

	for _, record := range tx.records {
		es.streams[record.StreamKey] = append(es.streams[record.StreamKey], record)
		es.eventIDs[record.EventID] = struct{}{}
	}

	for _, message := range tx.outbox {
		es.outboxIndex[message.ID] = len(es.outbox)
		es.outbox = append(es.outbox, message)
	}

	for id, processedOn := range tx.processed {
		idx, ok := es.outboxIndex[id]
		if !ok || es.outbox[idx].ProcessedOn != nil {
			continue
		}

		es.outbox[idx].ProcessedOn = &processedOn
	}

	if es.logger != nil {
		es.logger.Info(
			logMsgCommitted,
			logAttrRecordCount, len(tx.records),
			logAttrOutboxCount, len(tx.outbox),
			logAttrProcessedCount, len(tx.processed),
		)
	}

	return nil
}

// validateCommit re-checks versions and ids against the state other transactions committed meanwhile.
// The caller holds es.mu.
func (es *EventStore) validateCommit(tx *transaction) error {
	current := make(map[string]int)

	for _, record := range tx.records {
		version, seen := current[record.StreamKey]
		if !seen {
			version = len(es.streams[record.StreamKey])
		}

		if record.AggregateVersion != version+1 {
			return errors.Join(
				eventstore.ErrVersionConflict,
				fmt.Errorf("stream %q: version %d is already taken", record.StreamKey, record.AggregateVersion),
			)
		}

		if _, exists := es.eventIDs[record.EventID]; exists {
			return errors.Join(eventstore.ErrStorageFailure, fmt.Errorf("duplicate event id %s", record.EventID))
		}

		current[record.StreamKey] = version + 1
	}

	for _, message := range tx.outbox {
		if _, exists := es.outboxIndex[message.ID]; exists {
			return errors.Join(eventstore.ErrStorageFailure, fmt.Errorf("duplicate outbox message id %s", message.ID))
		}
	}

	return nil
}

func validateRecord(record eventstore.EventRecord) error {
	switch {
	case record.StreamKey == "":
		return errors.Join(eventstore.ErrInvalidStreamKey, errors.New("empty stream key"))
	case record.AggregateVersion < 1:
		return eventstore.ErrInvalidAggregateVersion
	case record.EventTypeName == "":
		return eventstore.ErrEmptyEventTypeName
	default:
		return nil
	}
}
