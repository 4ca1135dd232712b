package memoryengine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

// transaction buffers writes until Commit. It is safe for concurrent use.
type transaction struct {
	store     *EventStore
	mu        sync.Mutex
	records   eventstore.EventRecords
	outbox    eventstore.OutboxMessages
	processed map[uuid.UUID]time.Time
	resolved  bool
}

// Commit applies all buffered writes or none of them.
func (tx *transaction) Commit(ctx context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.resolved {
		return eventstore.ErrTransactionClosed
	}

	tx.resolved = true

	if err := ctx.Err(); err != nil {
		tx.discard()
		return errors.Join(eventstore.ErrStorageFailure, err)
	}

	if err := tx.store.commit(tx); err != nil {
		tx.discard()
		return err
	}

	return nil
}

// Rollback discards all buffered writes. It is a no-op on a resolved transaction.
func (tx *transaction) Rollback(_ context.Context) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.resolved {
		return nil
	}

	tx.resolved = true
	tx.discard()

	return nil
}

func (tx *transaction) discard() {
	tx.records = nil
	tx.outbox = nil
	tx.processed = nil
}

// bufferedFor counts the records this transaction holds for a stream. The caller holds tx.mu.
func (tx *transaction) bufferedFor(streamKey string) int {
	count := 0

	for _, record := range tx.records {
		if record.StreamKey == streamKey {
			count++
		}
	}

	return count
}
