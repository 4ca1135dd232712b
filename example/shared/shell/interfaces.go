package shell

import (
	"context"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

// Command is implemented by all commands of the example.
type Command interface {
	CommandType() string
}

// CommandHandler handles one kind of command.
type CommandHandler[C Command] interface {
	Handle(ctx context.Context, command C) error
}

// MetricsCollector interface for collecting command handler performance metrics.
type MetricsCollector = eventstore.MetricsCollector

// TracingCollector interface for distributed tracing in command handlers.
type TracingCollector = eventstore.TracingCollector

// SpanContext represents an active tracing span.
type SpanContext = eventstore.SpanContext

// ContextualLogger interface for context-aware logging in command handlers.
type ContextualLogger = eventstore.ContextualLogger

// Logger interface for basic logging in command handlers.
type Logger = eventstore.Logger
