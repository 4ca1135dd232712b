// Package domain provides the aggregate state machine of the event-sourcing core.
//
// An aggregate is a consistency boundary whose whole state is a fold over its domain events.
// User aggregates embed AggregateRoot and implement Apply as a type switch over their known events:
//
//	func (b *BookCopy) Apply(event domain.DomainEvent) error {
//		switch e := event.(type) {
//		case BookCopyAddedToCirculation:
//			b.isbn = e.ISBN
//		case BookCopyLentToReader:
//			b.lentTo = e.ReaderID
//		default:
//			return domain.UnknownEventVariant(b, event)
//		}
//
//		return nil
//	}
//
// New facts are raised with RaiseEvent after business rules were checked with CheckRule or
// CheckRuleContext. Stored histories are replayed with Create.
package domain
