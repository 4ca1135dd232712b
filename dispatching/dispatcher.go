package dispatching

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/serialization"
)

const (
	logMsgEventsStaged       = "domain events staged"
	logMsgBatchPublished     = "domain events published"
	logMsgSubscriberFailed   = "subscriber failed"
	logMsgSubscriberPanicked = "subscriber panicked"
	logAttrEventCount        = "event_count"
	logAttrInvocationCount   = "invocation_count"
	logAttrFailureCount      = "failure_count"
	logAttrEventID           = "event_id"
	logAttrEventType         = "event_type"
	logAttrSubscriber        = "subscriber"
	logAttrDurationMS        = "duration_ms"
	logAttrError             = "error"
	logAttrOutbox            = "outbox"

	metricPublishDuration    = "dispatcher_publish_duration_seconds"
	metricSubscriberDuration = "dispatcher_subscriber_duration_seconds"
	metricSubscriberFailures = "dispatcher_subscriber_failures_total"
	metricStagedBatchSize    = "dispatcher_staged_batch_size"
	spanNamePublish          = "dispatcher.publish"
	spanNameSubscriber       = "dispatcher.subscriber"
	labelEventType           = "event_type"
	labelSubscriber          = "subscriber"
	labelStatus              = "status"
)

// Option defines a functional option for configuring a Dispatcher.
type Option func(*Dispatcher) error

// WithOutbox makes Stage write one OutboxMessage per event into store.
func WithOutbox(store eventstore.OutboxStore) Option {
	return func(d *Dispatcher) error {
		if store == nil {
			return ErrNilOutboxStore
		}

		d.outboxModes++
		d.outbox = store

		return nil
	}
}

// WithoutOutbox configures a dispatcher that only notifies in-process subscribers.
func WithoutOutbox() Option {
	return func(d *Dispatcher) error {
		d.outboxModes++
		return nil
	}
}

// WithMaxConcurrentSubscribers limits the subscriber invocations running at the same time during Publish.
func WithMaxConcurrentSubscribers(limit int) Option {
	return func(d *Dispatcher) error {
		if limit < 1 {
			return ErrInvalidConcurrent
		}

		d.maxConcurrent = limit

		return nil
	}
}

// WithLogger sets the logger for the Dispatcher.
// Info level: staged and published batches. Error level: failed or panicked subscribers.
func WithLogger(logger eventstore.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, used instead of the plain logger for trace correlation.
func WithContextualLogger(logger eventstore.ContextualLogger) Option {
	return func(d *Dispatcher) error {
		d.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector receiving publish durations, subscriber durations and failures.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(d *Dispatcher) error {
		d.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector. Publish opens one span per batch and one per subscriber invocation.
func WithTracing(collector eventstore.TracingCollector) Option {
	return func(d *Dispatcher) error {
		d.tracingCollector = collector
		return nil
	}
}

// Dispatcher stages domain events into the outbox and publishes them to in-process subscribers.
// It is immutable after construction and safe for concurrent use.
type Dispatcher struct {
	serializer       *serialization.Serializer
	routes           map[reflect.Type]route
	outbox           eventstore.OutboxStore
	outboxModes      int
	maxConcurrent    int
	logger           eventstore.Logger
	contextualLogger eventstore.ContextualLogger
	metricsCollector eventstore.MetricsCollector
	tracingCollector eventstore.TracingCollector
}

// NewDispatcher creates a Dispatcher.
//
// Every event type registered in the serializer must be routed, every routed type must be registered.
// Exactly one of WithOutbox and WithoutOutbox must be given.
func NewDispatcher(serializer *serialization.Serializer, routes *Routes, options ...Option) (*Dispatcher, error) {
	if serializer == nil {
		return nil, ErrNilSerializer
	}

	if routes == nil {
		return nil, ErrNilRoutes
	}

	if routes.err != nil {
		return nil, routes.err
	}

	d := &Dispatcher{
		serializer: serializer,
		routes:     routes.snapshot(),
	}

	for _, option := range options {
		if err := option(d); err != nil {
			return nil, err
		}
	}

	if d.outboxModes != 1 {
		return nil, ErrOutboxConfiguration
	}

	if err := d.validateRoutes(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *Dispatcher) validateRoutes() error {
	routedNames := make(map[string]bool, len(d.routes))

	for eventType := range d.routes {
		typeName, err := d.serializer.TypeNameFor(eventType)
		if err != nil {
			return fmt.Errorf("route for %s: %w", eventType, err)
		}

		routedNames[typeName] = true
	}

	var missing []string

	for _, typeName := range d.serializer.TypeNames() {
		if !routedNames[typeName] {
			missing = append(missing, typeName)
		}
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: %s", ErrUnroutedEventType, strings.Join(missing, ", "))
	}

	return nil
}

// Batch holds the staged events of one aggregate commit, ready to be published.
type Batch struct {
	notifications []notification
}

type notification struct {
	eventID  uuid.UUID
	typeName string
	event    domain.DomainEvent
	route    route
}

// Len returns the number of staged events.
func (b Batch) Len() int {
	return len(b.notifications)
}

// EventIDs returns the assigned event ids in raise order. They equal the OutboxMessage ids.
func (b Batch) EventIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(b.notifications))
	for _, n := range b.notifications {
		ids = append(ids, n.eventID)
	}

	return ids
}

// Stage prepares the pending events of the aggregate for publication.
//
// With an outbox it writes one OutboxMessage per event inside tx. On success the pending events are
// cleared, on failure they are left untouched and tx should be rolled back.
func (d *Dispatcher) Stage(ctx context.Context, tx eventstore.Transaction, aggregate domain.Aggregate) (Batch, error) {
	batch, err := d.stage(ctx, tx, aggregate)
	if err != nil {
		return Batch{}, err
	}

	aggregate.Root().ClearPendingEvents()

	return batch, nil
}

// stage builds the batch and registers the outbox messages but keeps the pending events.
func (d *Dispatcher) stage(ctx context.Context, tx eventstore.Transaction, aggregate domain.Aggregate) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}

	if d.outbox != nil && tx == nil {
		return Batch{}, ErrNilTransaction
	}

	pending := aggregate.Root().PendingEvents()
	batch := Batch{notifications: make([]notification, 0, len(pending))}

	for _, event := range pending {
		r, ok := d.routes[reflect.TypeOf(event)]
		if !ok {
			return Batch{}, fmt.Errorf("%w: %T", ErrUnroutedEventType, event)
		}

		n, err := d.stageOne(ctx, tx, event, r)
		if err != nil {
			return Batch{}, err
		}

		batch.notifications = append(batch.notifications, n)
	}

	if len(pending) > 0 {
		d.logInfo(ctx, logMsgEventsStaged, logAttrEventCount, len(pending), logAttrOutbox, d.outbox != nil)
		eventstore.RecordValue(ctx, d.metricsCollector, metricStagedBatchSize, float64(len(pending)), nil)
	}

	return batch, nil
}

func (d *Dispatcher) stageOne(
	ctx context.Context,
	tx eventstore.Transaction,
	event domain.DomainEvent,
	r route,
) (notification, error) {
	typeName, err := d.serializer.TypeName(event)
	if err != nil {
		return notification{}, err
	}

	eventID, err := uuid.NewV7()
	if err != nil {
		return notification{}, err
	}

	if d.outbox != nil {
		payload, serializeErr := d.serializer.Serialize(event)
		if serializeErr != nil {
			return notification{}, serializeErr
		}

		message := eventstore.OutboxMessage{
			ID:                eventID,
			OccurredOn:        event.Header().OccurredOn,
			TypeName:          typeName,
			SerializedPayload: payload,
		}

		if err = d.outbox.RegisterEventToNotify(ctx, tx, message); err != nil {
			return notification{}, err
		}
	}

	return notification{eventID: eventID, typeName: typeName, event: event, route: r}, nil
}

// Publish invokes every subscriber of every event in the batch concurrently and waits for all of them.
//
// Failures do not stop other invocations. Every failure, including a recovered panic, is reported as a
// *SubscriberFailureError, all of them joined into the returned error. There are no retries.
func (d *Dispatcher) Publish(ctx context.Context, batch Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	start := time.Now()
	ctx, span := d.startSpan(ctx, spanNamePublish, map[string]string{logAttrEventCount: fmt.Sprint(batch.Len())})

	var (
		mu          sync.Mutex
		failures    []error
		invocations int
		group       errgroup.Group
	)

	if d.maxConcurrent > 0 {
		group.SetLimit(d.maxConcurrent)
	}

	for _, n := range batch.notifications {
		for _, s := range n.route.subscribers {
			invocations++

			group.Go(func() error {
				if err := d.invoke(ctx, n, s); err != nil {
					mu.Lock()
					failures = append(failures, err)
					mu.Unlock()
				}

				return nil
			})
		}
	}

	_ = group.Wait()

	status := eventstore.StatusSuccess
	if len(failures) > 0 {
		status = eventstore.StatusError
	}

	eventstore.RecordDuration(ctx, d.metricsCollector, metricPublishDuration, time.Since(start), map[string]string{labelStatus: status})
	d.finishSpan(span, status, map[string]string{logAttrFailureCount: fmt.Sprint(len(failures))})
	d.logInfo(
		ctx,
		logMsgBatchPublished,
		logAttrEventCount, batch.Len(),
		logAttrInvocationCount, invocations,
		logAttrFailureCount, len(failures),
		logAttrDurationMS, time.Since(start).Milliseconds(),
	)

	return errors.Join(failures...)
}

func (d *Dispatcher) invoke(ctx context.Context, n notification, s subscriber) (failure error) {
	start := time.Now()
	labels := map[string]string{labelEventType: n.typeName, labelSubscriber: s.name}
	ctx, span := d.startSpan(ctx, spanNameSubscriber, labels)

	defer func() {
		if recovered := recover(); recovered != nil {
			d.logError(ctx, logMsgSubscriberPanicked, logAttrSubscriber, s.name, logAttrEventID, n.eventID.String())
			failure = d.failure(n, s, fmt.Errorf("panic: %v", recovered))
		}

		status := eventstore.StatusSuccess
		if failure != nil {
			status = eventstore.StatusError
			eventstore.IncrementCounter(ctx, d.metricsCollector, metricSubscriberFailures, labels)
		}

		eventstore.RecordDuration(ctx, d.metricsCollector, metricSubscriberDuration, time.Since(start), labels)
		d.finishSpan(span, status, nil)
	}()

	if err := s.invoke(ctx, n.eventID, n.typeName, n.event); err != nil {
		d.logError(
			ctx,
			logMsgSubscriberFailed,
			logAttrSubscriber, s.name,
			logAttrEventID, n.eventID.String(),
			logAttrEventType, n.typeName,
			logAttrError, err.Error(),
		)

		return d.failure(n, s, err)
	}

	return nil
}

func (d *Dispatcher) failure(n notification, s subscriber, err error) error {
	return &SubscriberFailureError{
		EventID:    n.eventID,
		TypeName:   n.typeName,
		Subscriber: s.name,
		Err:        err,
	}
}

func (d *Dispatcher) startSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, eventstore.SpanContext) {
	if d.tracingCollector == nil {
		return ctx, nil
	}

	return d.tracingCollector.StartSpan(ctx, name, attrs)
}

func (d *Dispatcher) finishSpan(span eventstore.SpanContext, status string, attrs map[string]string) {
	if d.tracingCollector == nil || span == nil {
		return
	}

	d.tracingCollector.FinishSpan(span, status, attrs)
}

func (d *Dispatcher) logInfo(ctx context.Context, msg string, args ...any) {
	if d.contextualLogger != nil {
		d.contextualLogger.InfoContext(ctx, msg, args...)
		return
	}

	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

func (d *Dispatcher) logError(ctx context.Context, msg string, args ...any) {
	if d.contextualLogger != nil {
		d.contextualLogger.ErrorContext(ctx, msg, args...)
		return
	}

	if d.logger != nil {
		d.logger.Error(msg, args...)
	}
}
