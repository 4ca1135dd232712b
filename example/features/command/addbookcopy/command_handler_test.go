package addbookcopy_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/features/command/addbookcopy"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/core"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell/librarytest"
)

func buildCommand(bookID uuid.UUID, isbn string) addbookcopy.Command {
	return addbookcopy.BuildCommand(
		bookID, isbn, "Learning Domain-Driven Design", "Vlad Khononov",
		"First Edition", "O'Reilly Media, Inc.", 2021, time.Unix(0, 0).UTC(),
	)
}

func Test_CommandHandler_Handle_Success(t *testing.T) {
	// setup
	ctx := context.Background()
	env := librarytest.NewEnvironment(t)
	handler := addbookcopy.NewCommandHandler(env.UnitOfWork)
	bookID := uuid.New()

	// act
	err := handler.Handle(ctx, buildCommand(bookID, "978-1-098-10013-1"))

	// assert
	require.NoError(t, err)

	streamKey, err := eventstore.StreamKey(core.BookCopyTypeName, bookID.String())
	require.NoError(t, err)
	records, err := env.Store.LoadStream(ctx, streamKey)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, core.BookCopyAddedToCirculationEventType, records[0].EventTypeName)
	assert.Equal(t, time.Unix(0, 0).UTC(), records[0].OccurredOn)

	messages, err := env.Store.Outbox().Messages(ctx)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Equal(t, 1, env.LentBooks.BooksInCirculation())
}

func Test_CommandHandler_Handle_Is_Idempotent(t *testing.T) {
	// setup
	ctx := context.Background()
	env := librarytest.NewEnvironment(t)
	handler := addbookcopy.NewCommandHandler(env.UnitOfWork)
	command := buildCommand(uuid.New(), "978-1-098-10013-1")

	// arrange
	require.NoError(t, handler.Handle(ctx, command))

	// act
	err := handler.Handle(ctx, command)

	// assert
	require.NoError(t, err)

	messages, err := env.Store.Outbox().Messages(ctx)
	require.NoError(t, err)
	assert.Len(t, messages, 1, "the second command must not stage another event")
}

func Test_CommandHandler_Handle_When_ISBN_Is_Missing(t *testing.T) {
	// setup
	env := librarytest.NewEnvironment(t)
	handler := addbookcopy.NewCommandHandler(env.UnitOfWork)

	// act
	err := handler.Handle(context.Background(), buildCommand(uuid.New(), ""))

	// assert
	assert.ErrorIs(t, err, domain.ErrBusinessRuleViolation)
	assert.Zero(t, env.LentBooks.BooksInCirculation())
}
