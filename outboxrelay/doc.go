// Package outboxrelay delivers outbox messages to other services.
//
// A Relay polls an eventstore.OutboxRelayStore, hands every unprocessed message to a Publisher
// and marks the delivered messages as processed in the same transaction that fetched them.
// Delivery is at-least-once: a crash between publishing and committing publishes the message again,
// so consumers deduplicate on the message id.
//
// KafkaPublisher writes to Kafka with segmentio/kafka-go, RedisStreamPublisher appends to a Redis stream
// with go-redis, and PublisherFunc adapts a plain function.
package outboxrelay
