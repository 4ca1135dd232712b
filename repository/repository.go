package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/serialization"
)

const (
	logMsgStreamLoaded     = "aggregate stream loaded"
	logMsgStreamNotFound   = "aggregate stream not found"
	logMsgCorruptStream    = "aggregate stream is not contiguous"
	logMsgEventsAppended   = "aggregate events appended"
	logMsgVersionConflict  = "aggregate version conflict"
	logMsgAppendFailed     = "aggregate append failed"
	logAttrStreamKey       = "stream_key"
	logAttrEventCount      = "event_count"
	logAttrVersion         = "version"
	logAttrExpectedVersion = "expected_version"
	logAttrDurationMS      = "duration_ms"
	logAttrError           = "error"

	defaultPayloadSchemaVersion = eventstore.DefaultPayloadSchemaVersion
)

// ErrCorruptStream is returned when a stored stream does not hold the versions 1..N without gaps.
// It belongs to the deserialization class of errors.
var ErrCorruptStream = fmt.Errorf("%w: stream versions are not contiguous", serialization.ErrDeserializationFailure)

var (
	ErrEmptyTypeName     = fmt.Errorf("%w: aggregate type name must not be empty", domain.ErrInvalidArgument)
	ErrNilFactory        = fmt.Errorf("%w: aggregate factory must not be nil", domain.ErrInvalidArgument)
	ErrNilEventStore     = fmt.Errorf("%w: event store must not be nil", domain.ErrInvalidArgument)
	ErrNilSerializer     = fmt.Errorf("%w: serializer must not be nil", domain.ErrInvalidArgument)
	ErrEventHeaderBroken = fmt.Errorf("%w: pending event header does not match the aggregate", domain.ErrInvalidArgument)
)

// Option defines a functional option for configuring a Repository.
type Option func(*settings) error

type settings struct {
	logger               eventstore.Logger
	contextualLogger     eventstore.ContextualLogger
	payloadSchemaVersion int
}

// WithLogger sets the logger for the Repository.
// Info level: loaded and appended streams, conflicts. Error level: failed appends and corrupt streams.
func WithLogger(logger eventstore.Logger) Option {
	return func(s *settings) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, used instead of the plain logger for trace correlation.
func WithContextualLogger(logger eventstore.ContextualLogger) Option {
	return func(s *settings) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithPayloadSchemaVersion sets the schema version tag written into every EventRecord.
func WithPayloadSchemaVersion(version int) Option {
	return func(s *settings) error {
		if version < 1 {
			return fmt.Errorf("%w: payload schema version must be at least 1, got %d", domain.ErrInvalidArgument, version)
		}

		s.payloadSchemaVersion = version

		return nil
	}
}

// Repository loads and appends aggregates of type A.
type Repository[A domain.Aggregate] struct {
	typeName   string
	factory    func() A
	store      eventstore.EventStore
	serializer *serialization.Serializer
	settings   settings
}

// New creates a Repository for the aggregate type named typeName.
// The factory must return a fresh, zero-version aggregate on every call.
func New[A domain.Aggregate](
	typeName string,
	factory func() A,
	store eventstore.EventStore,
	serializer *serialization.Serializer,
	options ...Option,
) (*Repository[A], error) {
	if typeName == "" {
		return nil, ErrEmptyTypeName
	}

	if err := eventstore.ValidateTypeName(typeName); err != nil {
		return nil, err
	}

	if factory == nil {
		return nil, ErrNilFactory
	}

	if store == nil {
		return nil, ErrNilEventStore
	}

	if serializer == nil {
		return nil, ErrNilSerializer
	}

	repo := &Repository[A]{
		typeName:   typeName,
		factory:    factory,
		store:      store,
		serializer: serializer,
		settings:   settings{payloadSchemaVersion: defaultPayloadSchemaVersion},
	}

	for _, option := range options {
		if err := option(&repo.settings); err != nil {
			return nil, err
		}
	}

	return repo, nil
}

// TypeName returns the aggregate type name used as stream key prefix.
func (r *Repository[A]) TypeName() string {
	return r.typeName
}

// GetByID reconstructs the aggregate with the given id.
// found is false if the stream holds no events. In that case the returned aggregate is the zero value.
func (r *Repository[A]) GetByID(ctx context.Context, aggregateID string) (A, bool, error) {
	var zero A

	streamKey, err := eventstore.StreamKey(r.typeName, aggregateID)
	if err != nil {
		return zero, false, err
	}

	start := time.Now()

	records, err := r.store.LoadStream(ctx, streamKey)
	if err != nil {
		return zero, false, err
	}

	if len(records) == 0 {
		r.logDebug(ctx, logMsgStreamNotFound, logAttrStreamKey, streamKey)
		return zero, false, nil
	}

	if err = checkContiguity(records); err != nil {
		r.logError(ctx, logMsgCorruptStream, logAttrStreamKey, streamKey, logAttrError, err.Error())
		return zero, false, err
	}

	events := make(domain.DomainEvents, 0, len(records))

	for _, record := range records {
		event, deserializeErr := r.serializer.Deserialize(record.Payload, record.EventTypeName)
		if deserializeErr != nil {
			return zero, false, fmt.Errorf("stream %s version %d: %w", streamKey, record.AggregateVersion, deserializeErr)
		}

		events = append(events, event)
	}

	aggregate, err := domain.Create(r.factory, events)
	if err != nil {
		return zero, false, err
	}

	r.logInfo(
		ctx,
		logMsgStreamLoaded,
		logAttrStreamKey, streamKey,
		logAttrEventCount, len(records),
		logAttrDurationMS, time.Since(start).Milliseconds(),
	)

	return aggregate, true, nil
}

// Append converts the aggregate's pending events into records and appends them inside tx.
//
// The version of the i-th pending event must be the version before the first pending event plus i+1,
// which is what domain.RaiseEvent guarantees. ErrVersionConflict is returned unchanged, the caller is
// expected to roll back tx. Pending events are left untouched.
func (r *Repository[A]) Append(ctx context.Context, tx eventstore.Transaction, aggregate A) error {
	root := aggregate.Root()
	pending := root.PendingEvents()

	if len(pending) == 0 {
		return nil
	}

	streamKey, err := eventstore.StreamKey(r.typeName, root.ID())
	if err != nil {
		return err
	}

	records, err := r.buildRecords(streamKey, root, pending)
	if err != nil {
		return err
	}

	for _, record := range records {
		if err = r.store.Append(ctx, tx, record); err != nil {
			if errors.Is(err, eventstore.ErrVersionConflict) {
				r.logInfo(
					ctx,
					logMsgVersionConflict,
					logAttrStreamKey, streamKey,
					logAttrExpectedVersion, record.AggregateVersion-1,
				)

				return err
			}

			r.logError(ctx, logMsgAppendFailed, logAttrStreamKey, streamKey, logAttrError, err.Error())

			return err
		}
	}

	r.logInfo(
		ctx,
		logMsgEventsAppended,
		logAttrStreamKey, streamKey,
		logAttrEventCount, len(records),
		logAttrVersion, root.Version(),
	)

	return nil
}

func (r *Repository[A]) buildRecords(
	streamKey string,
	root *domain.AggregateRoot,
	pending domain.DomainEvents,
) (eventstore.EventRecords, error) {
	baseVersion := pending[0].Header().AggregateVersion - 1

	if baseVersion+len(pending) != root.Version() {
		return nil, fmt.Errorf(
			"%w: %d pending events starting after version %d do not end at version %d",
			ErrEventHeaderBroken, len(pending), baseVersion, root.Version(),
		)
	}

	records := make(eventstore.EventRecords, 0, len(pending))

	for i, event := range pending {
		header := event.Header()
		version := baseVersion + i + 1

		if header.AggregateVersion != version || header.AggregateID != root.ID() {
			return nil, fmt.Errorf(
				"%w: event %T has id %q and version %d, expected %q and %d",
				ErrEventHeaderBroken, event, header.AggregateID, header.AggregateVersion, root.ID(), version,
			)
		}

		typeName, err := r.serializer.TypeName(event)
		if err != nil {
			return nil, err
		}

		payload, err := r.serializer.Serialize(event)
		if err != nil {
			return nil, err
		}

		record, err := eventstore.BuildEventRecord(
			streamKey,
			version,
			typeName,
			header.OccurredOn,
			r.settings.payloadSchemaVersion,
			payload,
		)
		if err != nil {
			return nil, err
		}

		records = append(records, record)
	}

	return records, nil
}

func checkContiguity(records eventstore.EventRecords) error {
	for i, record := range records {
		if record.AggregateVersion != i+1 {
			return fmt.Errorf(
				"%w: stream %s has version %d at position %d",
				ErrCorruptStream, record.StreamKey, record.AggregateVersion, i+1,
			)
		}
	}

	return nil
}

func (r *Repository[A]) logDebug(ctx context.Context, msg string, args ...any) {
	if r.settings.contextualLogger != nil {
		r.settings.contextualLogger.DebugContext(ctx, msg, args...)
		return
	}

	if r.settings.logger != nil {
		r.settings.logger.Debug(msg, args...)
	}
}

func (r *Repository[A]) logInfo(ctx context.Context, msg string, args ...any) {
	if r.settings.contextualLogger != nil {
		r.settings.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if r.settings.logger != nil {
		r.settings.logger.Info(msg, args...)
	}
}

func (r *Repository[A]) logError(ctx context.Context, msg string, args ...any) {
	if r.settings.contextualLogger != nil {
		r.settings.contextualLogger.ErrorContext(ctx, msg, args...)
		return
	}

	if r.settings.logger != nil {
		r.settings.logger.Error(msg, args...)
	}
}
