package outboxrelay

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

// RedisStreamAdder is the part of redis.Cmdable that RedisStreamPublisher uses.
type RedisStreamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisOption configures a RedisStreamPublisher.
type RedisOption func(*RedisStreamPublisher)

// WithMaxLen caps the stream at approximately maxLen entries.
func WithMaxLen(maxLen int64) RedisOption {
	return func(p *RedisStreamPublisher) {
		p.maxLen = maxLen
	}
}

// RedisStreamPublisher appends outbox messages to a Redis stream.
type RedisStreamPublisher struct {
	client RedisStreamAdder
	stream string
	maxLen int64
}

// NewRedisStreamPublisher creates a publisher that appends to stream.
func NewRedisStreamPublisher(client RedisStreamAdder, stream string, options ...RedisOption) *RedisStreamPublisher {
	p := &RedisStreamPublisher{client: client, stream: stream}

	for _, option := range options {
		option(p)
	}

	return p
}

// Publish appends message with an id assigned by Redis.
func (p *RedisStreamPublisher) Publish(ctx context.Context, message eventstore.OutboxMessage) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		ID:     "*",
		Values: map[string]any{
			AttrEventID:    message.ID.String(),
			AttrEventType:  message.TypeName,
			AttrOccurredOn: message.OccurredOn.UTC().Format(time.RFC3339Nano),
			AttrPayload:    message.SerializedPayload,
		},
	}

	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	return p.client.XAdd(ctx, args).Err()
}
