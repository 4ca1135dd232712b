package returnbookcopyfromreader

import (
	"time"

	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

const (
	commandType = "ReturnBookCopy"
)

// Command represents the intent to take a book copy back from a reader.
type Command struct {
	BookID     uuid.UUID
	ReaderID   uuid.UUID
	OccurredAt time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command with the provided parameters.
func BuildCommand(bookID uuid.UUID, readerID uuid.UUID, occurredAt time.Time) Command {
	return Command{
		BookID:     bookID,
		ReaderID:   readerID,
		OccurredAt: domain.ToOccurredOn(occurredAt),
	}
}
