package outboxrelay

import (
	"context"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

// KafkaWriter is the part of *kafka.Writer that KafkaPublisher uses.
type KafkaWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
}

// KafkaOption configures a KafkaPublisher.
type KafkaOption func(*KafkaPublisher)

// WithTopicPrefix sets the prefix of the topic names. The topic of a message is prefix + type name,
// see TopicName.
func WithTopicPrefix(prefix string) KafkaOption {
	return func(p *KafkaPublisher) {
		p.topicPrefix = prefix
	}
}

// WithPropagator sets the propagator that writes the trace context into the message headers.
// The default is the global OpenTelemetry propagator.
func WithPropagator(propagator propagation.TextMapPropagator) KafkaOption {
	return func(p *KafkaPublisher) {
		p.propagator = propagator
	}
}

// KafkaPublisher publishes outbox messages to one topic per event type.
// The message key is the message id, so all deliveries of one message land in the same partition.
type KafkaPublisher struct {
	writer      KafkaWriter
	topicPrefix string
	propagator  propagation.TextMapPropagator
}

// NewKafkaWriter creates a writer for brokers that balances messages by key.
// The writer must not have a fixed Topic, because KafkaPublisher sets the topic per message.
func NewKafkaWriter(brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// NewKafkaPublisher creates a KafkaPublisher on writer.
func NewKafkaPublisher(writer KafkaWriter, options ...KafkaOption) *KafkaPublisher {
	p := &KafkaPublisher{writer: writer}

	for _, option := range options {
		option(p)
	}

	return p
}

// Publish writes message synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, message eventstore.OutboxMessage) error {
	kafkaMessage := kafka.Message{
		Topic: TopicName(p.topicPrefix, message.TypeName),
		Key:   []byte(message.ID.String()),
		Value: []byte(message.SerializedPayload),
		Time:  message.OccurredOn,
		Headers: []kafka.Header{
			{Key: AttrEventID, Value: []byte(message.ID.String())},
			{Key: AttrEventType, Value: []byte(message.TypeName)},
			{Key: AttrOccurredOn, Value: []byte(message.OccurredOn.UTC().Format(time.RFC3339Nano))},
		},
	}

	propagator := p.propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}

	carrier := &kafkaHeaderCarrier{headers: kafkaMessage.Headers}
	propagator.Inject(ctx, carrier)
	kafkaMessage.Headers = carrier.headers

	return p.writer.WriteMessages(ctx, kafkaMessage)
}

// TopicName returns prefix + typeName as a legal Kafka topic name.
// Characters outside [a-zA-Z0-9._-], like the slashes of a Go package path, become dots.
func TopicName(prefix string, typeName string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '.'
		}
	}, prefix+typeName)
}

// kafkaHeaderCarrier lets a propagator read and write Kafka headers.
type kafkaHeaderCarrier struct {
	headers []kafka.Header
}

func (c *kafkaHeaderCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}

	return ""
}

func (c *kafkaHeaderCarrier) Set(key string, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}

	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *kafkaHeaderCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}

	return keys
}

var _ propagation.TextMapCarrier = (*kafkaHeaderCarrier)(nil)
