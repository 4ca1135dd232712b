package serialization_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/serialization"
)

type parcelShipped struct {
	domain.EventHeader
	ParcelID   uuid.UUID         `json:"parcelId"`
	Weight     float64           `json:"weight"`
	Tags       []string          `json:"tags"`
	Dimensions map[string]int    `json:"dimensions"`
	Carrier    *string           `json:"carrier"`
	Recipient  recipient         `json:"recipient"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type recipient struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

type parcelDelivered struct {
	domain.EventHeader
	SignedBy string `json:"signedBy"`
}

func (parcelDelivered) EventType() string { return "ParcelDelivered" }

type parcelLost struct {
	domain.EventHeader
	Reason string
}

type leakyEvent struct {
	domain.EventHeader
	secret   string
	Ignored  string `json:"-"`
	Callback func()
}

type nestedLeak struct {
	domain.EventHeader
	Inner leakyInner
}

type leakyInner struct {
	Visible string
	hidden  int
}

func header(version int) domain.EventHeader {
	return domain.EventHeader{
		AggregateID:      "parcel-1",
		AggregateVersion: version,
		OccurredOn:       time.Date(2025, 2, 3, 4, 5, 6, 789000, time.UTC),
	}
}

func newSerializer(t *testing.T) *serialization.Serializer {
	t.Helper()

	serializer, err := serialization.NewSerializer(domain.DomainEvents{
		parcelShipped{},
		parcelDelivered{},
		&parcelLost{},
	})
	require.NoError(t, err)

	return serializer
}

func Test_Serialize_Then_Deserialize_Round_Trips_All_Fields(t *testing.T) {
	// setup
	serializer := newSerializer(t)
	carrier := "DHL"

	testCases := []domain.DomainEvent{
		parcelShipped{
			EventHeader: header(1),
			ParcelID:    uuid.MustParse("0198e1f2-aaaa-7bbb-8ccc-000000000001"),
			Weight:      0.1 + 0.2,
			Tags:        []string{"fragile", "express"},
			Dimensions:  map[string]int{"w": 10, "h": 20},
			Carrier:     &carrier,
			Recipient:   recipient{Name: "Ann", Country: "AT"},
		},
		parcelDelivered{EventHeader: header(2), SignedBy: "Bob"},
		&parcelLost{EventHeader: header(3), Reason: "unknown"},
	}

	for _, event := range testCases {
		// arrange
		typeName, err := serializer.TypeName(event)
		require.NoError(t, err)

		// act
		payload, err := serializer.Serialize(event)
		require.NoError(t, err)
		decoded, err := serializer.Deserialize(payload, typeName)

		// assert
		require.NoError(t, err)
		assert.Equal(t, event, decoded)
	}
}

func Test_TypeName_Uses_EventType_Or_Full_Go_Name(t *testing.T) {
	// setup
	serializer := newSerializer(t)

	// act
	typedName, errTyped := serializer.TypeName(parcelDelivered{})
	defaultName, errDefault := serializer.TypeName(parcelShipped{})

	// assert
	require.NoError(t, errTyped)
	require.NoError(t, errDefault)
	assert.Equal(t, "ParcelDelivered", typedName)
	assert.Equal(t, "github.com/AntonStoeckl/aggregate-eventstore-go/serialization_test.parcelShipped", defaultName)
	assert.Contains(t, serializer.TypeNames(), "ParcelDelivered")
}

func Test_Deserialize_Falls_Back_To_Short_Type_Names(t *testing.T) {
	// setup
	serializer := newSerializer(t)
	payload, err := serializer.Serialize(parcelShipped{EventHeader: header(1)})
	require.NoError(t, err)

	// act
	byShortName, errShort := serializer.Deserialize(payload, "parcelShipped")
	byQualifiedName, errQualified := serializer.Deserialize(payload, "serialization_test.parcelShipped")

	// assert
	require.NoError(t, errShort)
	require.NoError(t, errQualified)
	assert.IsType(t, parcelShipped{}, byShortName)
	assert.IsType(t, parcelShipped{}, byQualifiedName)
}

func Test_Deserialize_When_Type_Is_Unknown_Then_Returns_UnknownEventType(t *testing.T) {
	// setup
	serializer := newSerializer(t)

	// act
	event, err := serializer.Deserialize(`{}`, "ParcelStolen")

	// assert
	assert.ErrorIs(t, err, serialization.ErrUnknownEventType)
	assert.Nil(t, event)
}

func Test_Deserialize_When_Payload_Is_Broken_Then_Returns_DeserializationFailure(t *testing.T) {
	// setup
	serializer := newSerializer(t)

	testCases := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `{"aggregateId":`},
		{name: "wrong field type", payload: `{"aggregateId":"p","aggregateVersion":"one"}`},
		{name: "unknown field", payload: `{"aggregateId":"p","aggregateVersion":1,"colour":"red"}`},
		{name: "missing header", payload: `{"signedBy":"Bob"}`},
		{name: "null", payload: `null`},
		{name: "trailing data", payload: `{"aggregateId":"p","aggregateVersion":1} {}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			event, err := serializer.Deserialize(tc.payload, "ParcelDelivered")

			// assert
			assert.ErrorIs(t, err, serialization.ErrDeserializationFailure)
			assert.Nil(t, event)
		})
	}
}

func Test_Serialize_When_Type_Is_Not_Registered_Then_Returns_UnknownEventType(t *testing.T) {
	// setup
	serializer := newSerializer(t)

	// act
	_, errUnregistered := serializer.Serialize(leakyEvent{EventHeader: header(1)})
	_, errPointer := serializer.Serialize(&parcelDelivered{EventHeader: header(1)})

	// assert
	assert.ErrorIs(t, errUnregistered, serialization.ErrUnknownEventType)
	assert.ErrorIs(t, errPointer, serialization.ErrUnknownEventType)
}

func Test_NewSerializer_When_Registry_Is_Empty_Then_Fails(t *testing.T) {
	// act
	_, err := serialization.NewSerializer(nil)

	// assert
	assert.ErrorIs(t, err, serialization.ErrEmptyRegistry)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func Test_NewSerializer_When_Fields_Cannot_Round_Trip_Then_Lists_All_Of_Them(t *testing.T) {
	// act
	_, err := serialization.NewSerializer(domain.DomainEvents{leakyEvent{}, nestedLeak{}, parcelShipped{}})

	// assert
	require.ErrorIs(t, err, serialization.ErrUnserializableEventShape)
	assert.Contains(t, err.Error(), "leakyEvent.secret (unexported)")
	assert.Contains(t, err.Error(), `leakyEvent.Ignored (tagged json:"-")`)
	assert.Contains(t, err.Error(), "leakyEvent.Callback (func cannot be encoded)")
	assert.Contains(t, err.Error(), "nestedLeak.Inner.hidden (unexported)")
	assert.NotContains(t, err.Error(), "parcelShipped")
}

func Test_NewSerializer_With_Unserializable_Fields_Allowed(t *testing.T) {
	// act
	serializer, err := serialization.NewSerializer(
		domain.DomainEvents{leakyEvent{}},
		serialization.WithUnserializableFieldsAllowed(),
	)

	// assert
	require.NoError(t, err)
	assert.Len(t, serializer.TypeNames(), 1)
}

type otherParcelDelivered struct {
	domain.EventHeader
}

func (otherParcelDelivered) EventType() string { return "ParcelDelivered" }

func Test_NewSerializer_When_Type_Names_Clash_Then_Fails(t *testing.T) {
	// act
	_, err := serialization.NewSerializer(domain.DomainEvents{parcelDelivered{}, otherParcelDelivered{}})

	// assert
	assert.ErrorIs(t, err, serialization.ErrDuplicateEventType)
}
