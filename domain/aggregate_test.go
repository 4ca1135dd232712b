package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

type accountOpened struct {
	domain.EventHeader
	Owner string `json:"owner"`
}

type moneyDeposited struct {
	domain.EventHeader
	Amount int `json:"amount"`
}

type somethingUnexpected struct {
	domain.EventHeader
}

type account struct {
	domain.AggregateRoot
	owner   string
	balance int
}

func newAccount() *account {
	return &account{}
}

func (a *account) Apply(event domain.DomainEvent) error {
	switch e := event.(type) {
	case accountOpened:
		a.owner = e.Owner
	case moneyDeposited:
		a.balance += e.Amount
	default:
		return domain.UnknownEventVariant(a, event)
	}

	return nil
}

type brokenRule struct {
	broken bool
}

func (r brokenRule) IsBroken() bool  { return r.broken }
func (r brokenRule) Message() string { return "deposits must be positive" }

type asyncRule struct {
	broken bool
	err    error
}

func (r asyncRule) IsBroken(ctx context.Context) (bool, error) { return r.broken, r.err }
func (r asyncRule) Message() string                            { return "owner is blocked" }

func header(id string, version int) domain.EventHeader {
	return domain.EventHeader{
		AggregateID:      id,
		AggregateVersion: version,
		OccurredOn:       time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC),
	}
}

func Test_RaiseEvent_Increments_Version_And_Records_Pending_Events(t *testing.T) {
	// arrange
	acc := newAccount()

	// act
	errOpen := domain.RaiseEvent(acc, accountOpened{EventHeader: header("acc-1", 1), Owner: "Ann"})
	errDeposit := domain.RaiseEvent(acc, moneyDeposited{EventHeader: header("acc-1", 2), Amount: 10})

	// assert
	require.NoError(t, errOpen)
	require.NoError(t, errDeposit)
	assert.Equal(t, "acc-1", acc.ID())
	assert.Equal(t, 2, acc.Version())
	assert.Equal(t, "Ann", acc.owner)
	assert.Equal(t, 10, acc.balance)
	assert.Len(t, acc.PendingEvents(), 2)
}

func Test_RaiseEvent_When_Version_Is_Not_Next_Then_Rejects_Event(t *testing.T) {
	// arrange
	acc := newAccount()
	require.NoError(t, domain.RaiseEvent(acc, accountOpened{EventHeader: header("acc-1", 1)}))

	// act
	err := domain.RaiseEvent(acc, moneyDeposited{EventHeader: header("acc-1", 3), Amount: 5})

	// assert
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, 1, acc.Version())
	assert.Equal(t, 0, acc.balance)
}

func Test_RaiseEvent_When_Event_Belongs_To_Other_Aggregate_Then_Rejects_Event(t *testing.T) {
	// arrange
	acc := newAccount()
	require.NoError(t, domain.RaiseEvent(acc, accountOpened{EventHeader: header("acc-1", 1)}))

	// act
	err := domain.RaiseEvent(acc, moneyDeposited{EventHeader: header("acc-2", 2), Amount: 5})

	// assert
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func Test_RaiseEvent_When_Event_Variant_Is_Unknown_Then_Surfaces_Fatal_Error(t *testing.T) {
	// arrange
	acc := newAccount()

	// act
	err := domain.RaiseEvent(acc, somethingUnexpected{EventHeader: header("acc-1", 1)})

	// assert
	assert.ErrorIs(t, err, domain.ErrUnknownEventVariant)
	assert.Equal(t, 0, acc.Version())
	assert.False(t, acc.HasPendingEvents())
}

func Test_ClearPendingEvents_Is_Idempotent(t *testing.T) {
	// arrange
	acc := newAccount()
	require.NoError(t, domain.RaiseEvent(acc, accountOpened{EventHeader: header("acc-1", 1)}))

	// act
	acc.ClearPendingEvents()
	acc.ClearPendingEvents()

	// assert
	assert.Empty(t, acc.PendingEvents())
	assert.Equal(t, 1, acc.Version())
}

func Test_PendingEvents_Returns_A_Copy(t *testing.T) {
	// arrange
	acc := newAccount()
	require.NoError(t, domain.RaiseEvent(acc, accountOpened{EventHeader: header("acc-1", 1)}))

	// act
	pending := acc.PendingEvents()
	pending[0] = nil

	// assert
	assert.NotNil(t, acc.PendingEvents()[0])
}

func Test_Create_When_Events_Are_Empty_Then_Returns_InvalidArgument(t *testing.T) {
	// act
	_, errEmpty := domain.Create(newAccount, domain.DomainEvents{})
	_, errNil := domain.Create(newAccount, nil)

	// assert
	assert.ErrorIs(t, errEmpty, domain.ErrInvalidArgument)
	assert.ErrorIs(t, errNil, domain.ErrInvalidArgument)
}

func Test_Create_Replays_History_Without_Pending_Events(t *testing.T) {
	// arrange
	history := domain.DomainEvents{
		accountOpened{EventHeader: header("acc-1", 1), Owner: "Ann"},
		moneyDeposited{EventHeader: header("acc-1", 2), Amount: 10},
		moneyDeposited{EventHeader: header("acc-1", 3), Amount: 32},
	}

	// act
	acc, err := domain.Create(newAccount, history)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "acc-1", acc.ID())
	assert.Equal(t, len(history), acc.Version())
	assert.Equal(t, 42, acc.balance)
	assert.False(t, acc.HasPendingEvents())
}

func Test_Create_Is_Deterministic(t *testing.T) {
	// arrange
	history := domain.DomainEvents{
		accountOpened{EventHeader: header("acc-1", 1), Owner: "Ann"},
		moneyDeposited{EventHeader: header("acc-1", 2), Amount: 7},
	}

	// act
	first, errFirst := domain.Create(newAccount, history)
	second, errSecond := domain.Create(newAccount, history)

	// assert
	require.NoError(t, errFirst)
	require.NoError(t, errSecond)
	assert.Equal(t, first, second)
}

func Test_Create_When_History_Has_A_Gap_Then_Fails(t *testing.T) {
	// arrange
	history := domain.DomainEvents{
		accountOpened{EventHeader: header("acc-1", 1)},
		moneyDeposited{EventHeader: header("acc-1", 3), Amount: 7},
	}

	// act
	_, err := domain.Create(newAccount, history)

	// assert
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func Test_Create_When_History_Contains_Unknown_Variant_Then_Fails(t *testing.T) {
	// arrange
	history := domain.DomainEvents{
		accountOpened{EventHeader: header("acc-1", 1)},
		somethingUnexpected{EventHeader: header("acc-1", 2)},
	}

	// act
	_, err := domain.Create(newAccount, history)

	// assert
	assert.ErrorIs(t, err, domain.ErrUnknownEventVariant)
}

func Test_NextEventHeader_Uses_Id_Next_Version_And_Clock(t *testing.T) {
	// arrange
	acc := newAccount()
	require.NoError(t, acc.SetID("acc-1"))
	acc.SetClock(func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 123456789, time.FixedZone("CEST", 7200))
	})

	// act
	h := acc.NextEventHeader()

	// assert
	assert.Equal(t, "acc-1", h.AggregateID)
	assert.Equal(t, 1, h.AggregateVersion)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 123456000, time.UTC), h.OccurredOn)
}

func Test_SetID_When_Aggregate_Has_History_Then_Id_Is_Fixed(t *testing.T) {
	// arrange
	acc := newAccount()
	require.NoError(t, domain.RaiseEvent(acc, accountOpened{EventHeader: header("acc-1", 1)}))

	// act
	errOther := acc.SetID("acc-2")
	errSame := acc.SetID("acc-1")
	errEmpty := acc.SetID("")

	// assert
	assert.ErrorIs(t, errOther, domain.ErrInvalidArgument)
	assert.NoError(t, errSame)
	assert.ErrorIs(t, errEmpty, domain.ErrInvalidArgument)
}

func Test_CheckRule(t *testing.T) {
	// act
	errBroken := domain.CheckRule(brokenRule{broken: true})
	errIntact := domain.CheckRule(brokenRule{broken: false})

	// assert
	assert.NoError(t, errIntact)
	assert.ErrorIs(t, errBroken, domain.ErrBusinessRuleViolation)

	var violation *domain.BusinessRuleViolationError
	require.True(t, errors.As(errBroken, &violation))
	assert.Equal(t, "deposits must be positive", violation.Message)
}

func Test_CheckRules_Joins_All_Violations(t *testing.T) {
	// act
	err := domain.CheckRules(
		brokenRule{broken: true},
		domain.RuleFunc{Broken: func() bool { return false }, Msg: "never"},
		domain.RuleFunc{Broken: func() bool { return true }, Msg: "always"},
	)

	// assert
	assert.ErrorIs(t, err, domain.ErrBusinessRuleViolation)
	assert.Contains(t, err.Error(), "deposits must be positive")
	assert.Contains(t, err.Error(), "always")
	assert.NotContains(t, err.Error(), "never")
}

func Test_CheckRuleContext(t *testing.T) {
	// setup
	ctx := context.Background()
	canceledCtx, cancel := context.WithCancel(ctx)
	cancel()
	lookupErr := errors.New("lookup failed")

	// act
	errBroken := domain.CheckRuleContext(ctx, asyncRule{broken: true})
	errIntact := domain.CheckRuleContext(ctx, asyncRule{broken: false})
	errLookup := domain.CheckRuleContext(ctx, asyncRule{err: lookupErr})
	errCanceled := domain.CheckRuleContext(canceledCtx, asyncRule{broken: true})

	// assert
	assert.ErrorIs(t, errBroken, domain.ErrBusinessRuleViolation)
	assert.Contains(t, errBroken.Error(), "owner is blocked")
	assert.NoError(t, errIntact)
	assert.ErrorIs(t, errLookup, lookupErr)
	assert.NotErrorIs(t, errLookup, domain.ErrBusinessRuleViolation)
	assert.ErrorIs(t, errCanceled, context.Canceled)
}
