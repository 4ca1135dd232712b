package lendbookcopytoreader

import (
	"context"
	"time"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/core"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell"
)

// CommandHandler runs Load -> Decide -> Commit for LendBookCopy in a unit of work.
type CommandHandler struct {
	unitOfWork *shell.BookCopyUnitOfWork
	policy     core.LendingPolicy
}

// NewCommandHandler creates a new CommandHandler. A nil policy disables the lending limit.
func NewCommandHandler(unitOfWork *shell.BookCopyUnitOfWork, policy core.LendingPolicy) CommandHandler {
	return CommandHandler{unitOfWork: unitOfWork, policy: policy}
}

// Handle lends the book copy to the reader.
func (h CommandHandler) Handle(ctx context.Context, command Command) error {
	ctx = eventstore.WithStrongConsistency(ctx)

	_, err := h.unitOfWork.Execute(ctx, command.BookID.String(),
		func(ctx context.Context, book *core.BookCopy, found bool) (*core.BookCopy, error) {
			if !found {
				return book, shell.ErrBookCopyNotFound
			}

			book.SetClock(func() time.Time { return command.OccurredAt })

			return book, book.LendToReader(ctx, command.ReaderID, h.policy)
		})

	return err
}
