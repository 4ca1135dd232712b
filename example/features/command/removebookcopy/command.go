package removebookcopy

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

const (
	commandType = "RemoveBookCopy"
)

// Command represents the intent to remove a book copy from circulation.
type Command struct {
	BookID     uuid.UUID
	OccurredAt time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(bookID uuid.UUID, occurredAt time.Time) Command {
	return Command{
		BookID:     bookID,
		OccurredAt: domain.ToOccurredOn(occurredAt),
	}
}
