package eventstore

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
)

// DefaultPayloadSchemaVersion is the schema version tag of payloads written by this module.
const DefaultPayloadSchemaVersion = 1

var ErrInvalidPayloadJSON = fmt.Errorf("%w: payload json is not valid", domain.ErrInvalidArgument)
var ErrInvalidAggregateVersion = fmt.Errorf("%w: aggregate version must be at least 1", domain.ErrInvalidArgument)
var ErrEmptyEventTypeName = fmt.Errorf("%w: event type name must not be empty", domain.ErrInvalidArgument)

// EventRecords is an alias type for a slice of EventRecord.
type EventRecords = []EventRecord

// EventRecord is the durable, serialized representation of one domain event.
//
// It is built on scalars so that every storage engine can persist it verbatim.
// Records are immutable once stored. They should be constructed with BuildEventRecord.
type EventRecord struct {
	EventID              uuid.UUID
	StreamKey            string
	AggregateVersion     int
	EventTypeName        string
	OccurredOn           time.Time
	PayloadSchemaVersion int
	Payload              string
}

// BuildEventRecord is a factory method for EventRecord.
//
// It assigns a fresh time-ordered EventID and validates the scalar input.
func BuildEventRecord(
	streamKey string,
	aggregateVersion int,
	eventTypeName string,
	occurredOn time.Time,
	payloadSchemaVersion int,
	payload string,
) (EventRecord, error) {
	if streamKey == "" {
		return EventRecord{}, errors.Join(ErrInvalidStreamKey, errors.New("empty stream key"))
	}

	if aggregateVersion < 1 {
		return EventRecord{}, ErrInvalidAggregateVersion
	}

	if eventTypeName == "" {
		return EventRecord{}, ErrEmptyEventTypeName
	}

	if !jsoniter.Valid([]byte(payload)) {
		return EventRecord{}, ErrInvalidPayloadJSON
	}

	if payloadSchemaVersion < 1 {
		payloadSchemaVersion = DefaultPayloadSchemaVersion
	}

	eventID, err := uuid.NewV7()
	if err != nil {
		return EventRecord{}, err
	}

	return EventRecord{
		EventID:              eventID,
		StreamKey:            streamKey,
		AggregateVersion:     aggregateVersion,
		EventTypeName:        eventTypeName,
		OccurredOn:           occurredOn.UTC(),
		PayloadSchemaVersion: payloadSchemaVersion,
		Payload:              payload,
	}, nil
}
