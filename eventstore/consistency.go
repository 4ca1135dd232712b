package eventstore

import "context"

// ConsistencyLevel selects where an engine reads a stream from.
type ConsistencyLevel int

const (
	// StrongConsistency reads from the primary. It is the default, because loading an aggregate
	// to decide on new events must see every committed write.
	StrongConsistency ConsistencyLevel = iota

	// EventualConsistency allows reading from a replica. Suitable for read models and audits
	// that tolerate slightly stale streams.
	EventualConsistency
)

// contextKey is a private type to prevent context key collisions.
type contextKey string

// ConsistencyLevelKey is the context key used to store the consistency level.
const ConsistencyLevelKey contextKey = "eventstore.consistency_level"

// WithStrongConsistency returns a context that routes LoadStream to the primary.
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithEventualConsistency returns a context that allows LoadStream to use a replica:
//
//	records, err := store.LoadStream(eventstore.WithEventualConsistency(ctx), streamKey)
func WithEventualConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, EventualConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context, StrongConsistency if unset.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case EventualConsistency:
		return "eventual"
	default:
		return "unknown"
	}
}
