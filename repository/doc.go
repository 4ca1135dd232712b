// Package repository loads aggregates from their event streams and appends their pending events.
//
// A Repository is bound to one aggregate type. The stream of an aggregate is keyed
// "{TypeName}_{AggregateID}", see eventstore.StreamKey.
//
// Loading replays the committed records through domain.Create. A stored stream whose versions are
// not exactly 1..N is rejected with ErrCorruptStream instead of being replayed.
//
// Appending converts the pending events into EventRecords and appends them in the caller's
// transaction. The repository neither commits nor clears pending events, that is the job of the
// caller (usually dispatching.UnitOfWork).
package repository
