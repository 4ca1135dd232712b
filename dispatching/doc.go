// Package dispatching delivers the domain events of a committed aggregate to in-process subscribers
// and records them in the transactional outbox for other services.
//
// Dispatch runs in two phases:
//
//   - Stage runs inside the append transaction. It assigns an event id to every pending event,
//     writes one OutboxMessage per event through the OutboxStore and clears the pending events.
//   - Publish runs after the transaction committed. It invokes every subscriber of every staged event
//     concurrently and waits for all of them.
//
// Routes are declared once at startup with Route and Subscribe. NewDispatcher fails fast if an event
// type known to the serializer has no route.
//
// Outbox messages are delivered at least once, consumers must be idempotent on OutboxMessage.ID.
//
// UnitOfWork ties a repository, the dispatcher, and the transaction together.
package dispatching
