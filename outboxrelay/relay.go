package outboxrelay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 50
	defaultRetryDelay   = 200 * time.Millisecond
	defaultRetries      = 3

	logMsgBatchRelayed   = "outbox relay: batch relayed"
	logMsgBatchFailed    = "outbox relay: batch failed"
	logMsgPublishRetry   = "outbox relay: publishing failed, retrying"
	logMsgRelayStarted   = "outbox relay: started"
	logMsgRelayStopped   = "outbox relay: stopped"
	logAttrMessageCount  = "message_count"
	logAttrMessageID     = "message_id"
	logAttrEventType     = "event_type"
	logAttrError         = "error"
	logAttrRetryIn       = "retry_in"
	logAttrPollInterval  = "poll_interval"
	metricRelayDuration  = "outbox_relay_duration_seconds"
	metricRelayedTotal   = "outbox_relay_messages_relayed_total"
	metricRelayFailures  = "outbox_relay_failures_total"
	metricRelayBatchSize = "outbox_relay_batch_size"
	labelStatus          = "status"
	labelEventType       = "event_type"
)

var (
	// ErrPublishFailed is returned when a message could not be published within the retry budget.
	ErrPublishFailed = errors.New("publishing outbox message failed")

	ErrNilRelayStore       = fmt.Errorf("%w: outbox relay store must not be nil", domain.ErrInvalidArgument)
	ErrNilPublisher        = fmt.Errorf("%w: publisher must not be nil", domain.ErrInvalidArgument)
	ErrInvalidPollInterval = fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidArgument)
	ErrInvalidBatchSize    = fmt.Errorf("%w: batch size must be at least 1", domain.ErrInvalidArgument)
)

// Option defines a functional option for configuring a Relay.
type Option func(*Relay) error

// WithPollInterval sets the pause between two batches. The default is 2s.
func WithPollInterval(interval time.Duration) Option {
	return func(r *Relay) error {
		if interval <= 0 {
			return ErrInvalidPollInterval
		}

		r.pollInterval = interval

		return nil
	}
}

// WithBatchSize sets the maximum number of messages per batch. The default is 50.
func WithBatchSize(size int) Option {
	return func(r *Relay) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}

		r.batchSize = size

		return nil
	}
}

// WithRetryBackOff sets the factory for the BackOff that paces publish retries of one message.
// The default retries 3 times with a constant delay of 200ms.
func WithRetryBackOff(newBackOff func() backoff.BackOff) Option {
	return func(r *Relay) error {
		if newBackOff == nil {
			return fmt.Errorf("%w: back-off factory must not be nil", domain.ErrInvalidArgument)
		}

		r.newBackOff = newBackOff

		return nil
	}
}

// WithClock sets the source of the processed_on timestamps.
func WithClock(clock func() time.Time) Option {
	return func(r *Relay) error {
		if clock == nil {
			return fmt.Errorf("%w: clock must not be nil", domain.ErrInvalidArgument)
		}

		r.clock = clock

		return nil
	}
}

// WithLogger sets the logger for the Relay.
func WithLogger(logger eventstore.Logger) Option {
	return func(r *Relay) error {
		r.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Relay.
func WithMetrics(collector eventstore.MetricsCollector) Option {
	return func(r *Relay) error {
		r.metricsCollector = collector
		return nil
	}
}

// Relay moves outbox messages from the store to a Publisher.
type Relay struct {
	store            eventstore.OutboxRelayStore
	publisher        Publisher
	pollInterval     time.Duration
	batchSize        int
	newBackOff       func() backoff.BackOff
	clock            func() time.Time
	logger           eventstore.Logger
	metricsCollector eventstore.MetricsCollector
}

// New creates a Relay.
func New(store eventstore.OutboxRelayStore, publisher Publisher, options ...Option) (*Relay, error) {
	if store == nil {
		return nil, ErrNilRelayStore
	}

	if publisher == nil {
		return nil, ErrNilPublisher
	}

	r := &Relay{
		store:        store,
		publisher:    publisher,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		newBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewConstantBackOff(defaultRetryDelay), defaultRetries)
		},
		clock: time.Now,
	}

	for _, option := range options {
		if err := option(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Run relays batches until ctx is done. A full batch is followed immediately by the next one,
// otherwise the relay waits for the poll interval. Batch failures are logged and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.logInfo(logMsgRelayStarted, logAttrPollInterval, r.pollInterval.String())

	for {
		relayed, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.logError(logMsgBatchFailed, logAttrError, err.Error())
		}

		if err == nil && relayed == r.batchSize {
			continue
		}

		select {
		case <-ctx.Done():
			r.logInfo(logMsgRelayStopped)
			return nil
		case <-ticker.C:
		}
	}
}

// RelayOnce relays one batch and returns the number of messages marked processed.
//
// Messages are published in order. The first message that cannot be published stops the batch:
// the messages published before it are marked processed, it and all later ones stay unprocessed.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	start := time.Now()

	relayed, err := r.relayBatch(ctx)

	status := eventstore.StatusSuccess
	if err != nil {
		status = eventstore.StatusError
		eventstore.IncrementCounter(ctx, r.metricsCollector, metricRelayFailures, nil)
	}

	eventstore.RecordDuration(ctx, r.metricsCollector, metricRelayDuration, time.Since(start), map[string]string{labelStatus: status})

	return relayed, err
}

func (r *Relay) relayBatch(ctx context.Context) (int, error) {
	tx, err := r.store.BeginTransaction(ctx)
	if err != nil {
		return 0, err
	}

	defer func() { _ = tx.Rollback(ctx) }()

	messages, err := r.store.FetchUnprocessed(ctx, tx, r.batchSize)
	if err != nil {
		return 0, err
	}

	eventstore.RecordValue(ctx, r.metricsCollector, metricRelayBatchSize, float64(len(messages)), nil)

	if len(messages) == 0 {
		return 0, tx.Commit(ctx)
	}

	published := make([]uuid.UUID, 0, len(messages))

	var publishErr error

	for _, message := range messages {
		if publishErr = r.publish(ctx, message); publishErr != nil {
			break
		}

		published = append(published, message.ID)
		eventstore.IncrementCounter(ctx, r.metricsCollector, metricRelayedTotal, map[string]string{labelEventType: message.TypeName})
	}

	if len(published) > 0 {
		if err = r.store.MarkProcessed(ctx, tx, published, r.clock()); err != nil {
			return 0, errors.Join(err, publishErr)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, errors.Join(err, publishErr)
	}

	if publishErr != nil {
		return len(published), publishErr
	}

	r.logInfo(logMsgBatchRelayed, logAttrMessageCount, len(published))

	return len(published), nil
}

func (r *Relay) publish(ctx context.Context, message eventstore.OutboxMessage) error {
	operation := func() error {
		return r.publisher.Publish(ctx, message)
	}

	notify := func(err error, retryIn time.Duration) {
		r.logWarn(
			logMsgPublishRetry,
			logAttrMessageID, message.ID.String(),
			logAttrEventType, message.TypeName,
			logAttrError, err.Error(),
			logAttrRetryIn, retryIn.String(),
		)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(r.newBackOff(), ctx), notify)
	if err != nil {
		return errors.Join(ErrPublishFailed, fmt.Errorf("message %s (%s)", message.ID, message.TypeName), err)
	}

	return nil
}

func (r *Relay) logInfo(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Info(msg, args...)
	}
}

func (r *Relay) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func (r *Relay) logError(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Error(msg, args...)
	}
}
