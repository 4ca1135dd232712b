package returnbookcopyfromreader

import (
	"context"
	"time"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/core"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell"
)

// CommandHandler runs Load -> Decide -> Commit for ReturnBookCopy in a unit of work.
type CommandHandler struct {
	unitOfWork *shell.BookCopyUnitOfWork
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(unitOfWork *shell.BookCopyUnitOfWork) CommandHandler {
	return CommandHandler{unitOfWork: unitOfWork}
}

// Handle takes the book copy back from the reader.
func (h CommandHandler) Handle(ctx context.Context, command Command) error {
	ctx = eventstore.WithStrongConsistency(ctx)

	_, err := h.unitOfWork.Execute(ctx, command.BookID.String(),
		func(_ context.Context, book *core.BookCopy, found bool) (*core.BookCopy, error) {
			if !found {
				return book, shell.ErrBookCopyNotFound
			}

			book.SetClock(func() time.Time { return command.OccurredAt })

			return book, book.ReturnFromReader(command.ReaderID)
		})

	return err
}
