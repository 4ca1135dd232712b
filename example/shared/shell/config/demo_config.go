package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Store kinds.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Postgres adapter types.
const (
	AdapterPGXPool = "pgx.pool"
	AdapterSQLDB   = "sql.db"
	AdapterSQLX    = "sqlx.db"
)

// Publisher kinds of the outbox relay.
const (
	PublisherLog   = "log"
	PublisherKafka = "kafka"
	PublisherRedis = "redis"
)

// Demo is the configuration of the library-demo command.
type Demo struct {
	Store             string
	Adapter           string
	PostgresDSN       string
	PostgresReplica   string
	Publisher         string
	KafkaBrokers      []string
	KafkaTopicPrefix  string
	RedisAddr         string
	RedisStream       string
	RelayPollInterval time.Duration
	RelayBatchSize    int
	MetricsAddr       string
	LogLevel          slog.Level
	BookCount         int
	ReaderCount       int
}

// LoadDemo reads the Demo configuration from the environment.
func LoadDemo() (Demo, error) {
	cfg := Demo{
		Store:            String("EVENTSTORE", StoreMemory),
		Adapter:          String("ADAPTER_TYPE", AdapterPGXPool),
		PostgresDSN:      PostgresDSN(),
		PostgresReplica:  PostgresReplicaDSN(),
		Publisher:        String("OUTBOX_PUBLISHER", PublisherLog),
		KafkaBrokers:     SplitList(String("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopicPrefix: String("KAFKA_TOPIC_PREFIX", "library."),
		RedisAddr:        String("REDIS_ADDR", "localhost:6379"),
		RedisStream:      String("REDIS_STREAM", "library-events"),
		MetricsAddr:      String("METRICS_ADDR", ""),
	}

	var errs []error

	var err error
	if cfg.RelayPollInterval, err = Duration("RELAY_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		errs = append(errs, err)
	}

	if cfg.RelayBatchSize, err = Int("RELAY_BATCH_SIZE", 50); err != nil {
		errs = append(errs, err)
	}

	if cfg.BookCount, err = Int("DEMO_BOOKS", 20); err != nil {
		errs = append(errs, err)
	}

	if cfg.ReaderCount, err = Int("DEMO_READERS", 5); err != nil {
		errs = append(errs, err)
	}

	if err = cfg.LogLevel.UnmarshalText([]byte(String("LOG_LEVEL", "INFO"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	switch cfg.Store {
	case StoreMemory, StorePostgres:
	default:
		errs = append(errs, fmt.Errorf("EVENTSTORE must be %q or %q (got %q)", StoreMemory, StorePostgres, cfg.Store))
	}

	switch cfg.Adapter {
	case AdapterPGXPool, AdapterSQLDB, AdapterSQLX:
	default:
		errs = append(errs, fmt.Errorf("ADAPTER_TYPE must be one of %q, %q, %q (got %q)",
			AdapterPGXPool, AdapterSQLDB, AdapterSQLX, cfg.Adapter))
	}

	switch cfg.Publisher {
	case PublisherLog, PublisherRedis:
	case PublisherKafka:
		if len(cfg.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka publisher"))
		}
	default:
		errs = append(errs, fmt.Errorf("OUTBOX_PUBLISHER must be one of %q, %q, %q (got %q)",
			PublisherLog, PublisherKafka, PublisherRedis, cfg.Publisher))
	}

	return cfg, errors.Join(errs...)
}
