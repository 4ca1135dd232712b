package addbookcopy

import (
	"context"
	"time"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/core"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell"
)

// CommandHandler runs Load -> Decide -> Commit for AddBookCopy in a unit of work.
type CommandHandler struct {
	unitOfWork *shell.BookCopyUnitOfWork
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(unitOfWork *shell.BookCopyUnitOfWork) CommandHandler {
	return CommandHandler{unitOfWork: unitOfWork}
}

// Handle adds the book copy unless it already exists.
func (h CommandHandler) Handle(ctx context.Context, command Command) error {
	ctx = eventstore.WithStrongConsistency(ctx)

	_, err := h.unitOfWork.Execute(ctx, command.BookID.String(),
		func(_ context.Context, book *core.BookCopy, found bool) (*core.BookCopy, error) {
			if found {
				return book, nil
			}

			return core.AddBookCopyToCirculation(
				command.BookID,
				command.ISBN,
				command.Title,
				command.Authors,
				command.Edition,
				command.Publisher,
				command.PublicationYear,
				func() time.Time { return command.OccurredAt },
			)
		})

	return err
}
