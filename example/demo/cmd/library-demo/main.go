// Command library-demo runs the book circulation example end to end: command handlers commit events
// and outbox messages in one transaction, a read model follows via in-process subscribers, and the
// outbox relay publishes the messages to a log, Kafka or a Redis stream.
//
// Configuration is read from the environment, see config.LoadDemo.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/aggregate-eventstore-go/dispatching"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/oteladapters"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore/promadapters"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell/config"
	"github.com/AntonStoeckl/aggregate-eventstore-go/example/shared/shell/readmodel"
	"github.com/AntonStoeckl/aggregate-eventstore-go/outboxrelay"
)

const serviceName = "library-demo"

func main() {
	if err := run(); err != nil {
		slog.Error("library demo failed", "error", err.Error())
		os.Exit(1)
	}
}

//nolint:funlen
func run() error {
	cfg, err := config.LoadDemo()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})).
		With("service", serviceName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := promadapters.NewMetricsCollector(registry, promadapters.WithNamespace("library"))

	tracerProvider := sdktrace.NewTracerProvider()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	tracing := oteladapters.NewTracingCollector(tracerProvider.Tracer(serviceName))

	stores, err := openStores(ctx, cfg, logger, metrics, tracing)
	if err != nil {
		return err
	}
	defer stores.close()

	lentBooks := readmodel.NewLentBooks()
	routes := dispatching.NewRoutes()
	lentBooks.Subscribe(routes)

	unitOfWork, err := shell.NewBookCopyUnitOfWork(stores.eventStore, stores.outbox, routes, shell.WiringOptions{
		ContextualLogger: logger,
		Logger:           logger,
		Metrics:          metrics,
		Tracing:          tracing,
		ConflictBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
		},
	})
	if err != nil {
		return err
	}

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	relay, err := outboxrelay.New(
		stores.relayStore,
		publisher,
		outboxrelay.WithPollInterval(cfg.RelayPollInterval),
		outboxrelay.WithBatchSize(cfg.RelayBatchSize),
		outboxrelay.WithLogger(logger),
		outboxrelay.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}

	handlers, err := newHandlers(unitOfWork, lentBooks, logger, metrics, tracing)
	if err != nil {
		return err
	}

	relayCtx, stopRelay := context.WithCancel(ctx)
	defer stopRelay()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return relay.Run(relayCtx)
	})

	if cfg.MetricsAddr != "" {
		server := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		group.Go(func() error {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if serveErr := server.ListenAndServe(); !errors.Is(serveErr, http.ErrServerClosed) {
				return serveErr
			}

			return nil
		})

		group.Go(func() error {
			<-relayCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			return server.Shutdown(shutdownCtx)
		})
	}

	group.Go(func() error {
		defer stopRelay()

		summary, scenarioErr := newScenario(handlers, cfg.BookCount, cfg.ReaderCount).run(groupCtx)
		if scenarioErr != nil {
			return scenarioErr
		}

		stopRelay()

		drained, drainErr := drainOutbox(ctx, relay)
		if drainErr != nil {
			return drainErr
		}

		logger.Info("scenario finished",
			"commands", summary.commands,
			"rejected", summary.rejected,
			"books_in_circulation", lentBooks.BooksInCirculation(),
			"books_lent_out", lentBooks.LentOut(),
			"outbox_messages_relayed_at_end", drained,
		)

		return nil
	})

	return group.Wait()
}

// drainOutbox relays batches until the outbox is empty.
func drainOutbox(ctx context.Context, relay *outboxrelay.Relay) (int, error) {
	total := 0

	for {
		relayed, err := relay.RelayOnce(ctx)
		total += relayed

		if err != nil {
			return total, err
		}

		if relayed == 0 {
			return total, nil
		}
	}
}

func newPublisher(cfg config.Demo, logger *slog.Logger) (outboxrelay.Publisher, func(), error) {
	switch cfg.Publisher {
	case config.PublisherKafka:
		writer := outboxrelay.NewKafkaWriter(cfg.KafkaBrokers...)
		publisher := outboxrelay.NewKafkaPublisher(writer, outboxrelay.WithTopicPrefix(cfg.KafkaTopicPrefix))

		return publisher, func() { _ = writer.Close() }, nil

	case config.PublisherRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		publisher := outboxrelay.NewRedisStreamPublisher(client, cfg.RedisStream, outboxrelay.WithMaxLen(100_000))

		return publisher, func() { _ = client.Close() }, nil

	case config.PublisherLog:
		publisher := outboxrelay.PublisherFunc(func(ctx context.Context, message eventstore.OutboxMessage) error {
			logger.InfoContext(ctx, "outbox message published",
				outboxrelay.AttrEventID, message.ID.String(),
				outboxrelay.AttrEventType, message.TypeName,
				outboxrelay.AttrOccurredOn, message.OccurredOn.Format(time.RFC3339Nano),
			)

			return nil
		})

		return publisher, func() {}, nil

	default:
		return nil, nil, fmt.Errorf("unknown outbox publisher %q", cfg.Publisher)
	}
}
