package memoryengine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

// ErrInvalidOutboxMessage is returned for outbox messages without id or type name, or already processed ones.
var ErrInvalidOutboxMessage = fmt.Errorf("%w: invalid outbox message", domain.ErrInvalidArgument)

// OutboxStore stages and relays outbox messages in the transactions of its EventStore.
type OutboxStore struct {
	store *EventStore
}

// RegisterEventToNotify buffers a message in tx. It becomes visible when tx commits.
func (o *OutboxStore) RegisterEventToNotify(
	ctx context.Context,
	tx eventstore.Transaction,
	message eventstore.OutboxMessage,
) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(eventstore.ErrStorageFailure, err)
	}

	memTx, err := o.store.ownTransaction(tx)
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

	memTx.mu.Lock()
	defer memTx.mu.Unlock()

	if memTx.resolved {
		return eventstore.ErrTransactionClosed
	}

	message.OccurredOn = message.OccurredOn.UTC()
	memTx.outbox = append(memTx.outbox, message)

	return nil
}

// BeginTransaction starts a transaction on the underlying EventStore.
func (o *OutboxStore) BeginTransaction(ctx context.Context) (eventstore.Transaction, error) {
	return o.store.BeginTransaction(ctx)
}

// FetchUnprocessed returns up to limit committed, unprocessed messages ordered by OccurredOn.
// Messages already marked in tx are skipped.
func (o *OutboxStore) FetchUnprocessed(
	ctx context.Context,
	tx eventstore.Transaction,
	limit int,
) (eventstore.OutboxMessages, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(eventstore.ErrStorageFailure, err)
	}

	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be at least 1", domain.ErrInvalidArgument)
	}

	memTx, err := o.store.ownTransaction(tx)
	if err != nil {
		return nil, err
	}

	memTx.mu.Lock()
	defer memTx.mu.Unlock()

	if memTx.resolved {
		return nil, eventstore.ErrTransactionClosed
	}

	o.store.mu.RLock()
	defer o.store.mu.RUnlock()

	unprocessed := make(eventstore.OutboxMessages, 0, limit)
	for _, message := range o.store.outbox {
		if message.ProcessedOn != nil {
			continue
		}

		if _, marked := memTx.processed[message.ID]; marked {
			continue
		}

		unprocessed = append(unprocessed, message)
	}

	sort.SliceStable(unprocessed, func(i, j int) bool {
		return unprocessed[i].OccurredOn.Before(unprocessed[j].OccurredOn)
	})

	if len(unprocessed) > limit {
		unprocessed = unprocessed[:limit]
	}

	return unprocessed, nil
}

// MarkProcessed buffers processed marks in tx. Unknown or already processed ids are ignored at commit.
func (o *OutboxStore) MarkProcessed(
	ctx context.Context,
	tx eventstore.Transaction,
	ids []uuid.UUID,
	processedOn time.Time,
) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(eventstore.ErrStorageFailure, err)
	}

	memTx, err := o.store.ownTransaction(tx)
	if err != nil {
		return err
	}

	memTx.mu.Lock()
	defer memTx.mu.Unlock()

	if memTx.resolved {
		return eventstore.ErrTransactionClosed
	}

	for _, id := range ids {
		memTx.processed[id] = processedOn.UTC()
	}

	return nil
}

// Messages returns a copy of all committed outbox messages in staging order.
func (o *OutboxStore) Messages(ctx context.Context) (eventstore.OutboxMessages, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(eventstore.ErrStorageFailure, err)
	}

	o.store.mu.RLock()
	defer o.store.mu.RUnlock()

	messages := make(eventstore.OutboxMessages, len(o.store.outbox))
	copy(messages, o.store.outbox)

	return messages, nil
}
