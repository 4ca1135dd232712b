package eventstore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Transaction groups event appends and outbox writes so that they become durable together.
//
// Commit on a resolved transaction returns ErrTransactionClosed. Rollback on a resolved transaction
// is a no-op, so deferring Rollback right after BeginTransaction is always safe.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// EventStore is per-stream, append-only storage with optimistic concurrency.
type EventStore interface {
	// BeginTransaction starts the unit in which records are appended.
	BeginTransaction(ctx context.Context) (Transaction, error)

	// Append adds one record to its stream inside tx.
	// It returns ErrVersionConflict if the stream's current version is not record.AggregateVersion-1,
	// which includes the case of another writer holding the same (StreamKey, AggregateVersion).
	Append(ctx context.Context, tx Transaction, record EventRecord) error

	// LoadStream returns the committed records of a stream in ascending AggregateVersion order.
	// A stream that does not exist yields an empty result, not an error.
	LoadStream(ctx context.Context, streamKey string) (EventRecords, error)
}

// OutboxStore stages outbox messages in the transaction of the triggering append.
type OutboxStore interface {
	RegisterEventToNotify(ctx context.Context, tx Transaction, message OutboxMessage) error
}

// OutboxRelayStore is the read side of the outbox used by relays delivering messages to other services.
type OutboxRelayStore interface {
	BeginTransaction(ctx context.Context) (Transaction, error)

	// FetchUnprocessed returns up to limit unprocessed messages, oldest first.
	// Engines that support it lock the returned messages until tx resolves.
	FetchUnprocessed(ctx context.Context, tx Transaction, limit int) (OutboxMessages, error)

	// MarkProcessed sets ProcessedOn for the given messages when tx commits.
	// Messages that are already processed keep their original ProcessedOn.
	MarkProcessed(ctx context.Context, tx Transaction, ids []uuid.UUID, processedOn time.Time) error
}
