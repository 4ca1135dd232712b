package postgresengine

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

const (
	metricAppendDuration   = "eventstore_append_duration_seconds"
	metricLoadDuration     = "eventstore_load_duration_seconds"
	metricCommitDuration   = "eventstore_commit_duration_seconds"
	metricRecordsLoaded    = "eventstore_records_loaded"
	metricVersionConflicts = "eventstore_version_conflicts_total"
	metricDatabaseErrors   = "eventstore_database_errors_total"
	spanNameAppend         = "eventstore.append"
	spanNameLoad           = "eventstore.load_stream"
	spanNameCommit         = "eventstore.commit"
	spanNameOutboxRegister = "eventstore.outbox.register"
	spanNameOutboxFetch    = "eventstore.outbox.fetch"
	spanNameOutboxMark     = "eventstore.outbox.mark"
	spanAttrOperation      = "operation"
	spanAttrStreamKey      = "stream_key"
	spanAttrVersion        = "aggregate_version"
	spanAttrEventType      = "event_type"
	spanAttrRecordCount    = "record_count"
	spanAttrDurationMS     = "duration_ms"
	spanAttrErrorType      = "error_type"
	labelStatus            = "status"
	labelConflictType      = "conflict_type"
	conflictTypeVersion    = "version"
)

// logQueryWithDurationContext logs SQL statements with execution time at debug level.
func (es *EventStore) logQueryWithDurationContext(
	ctx context.Context,
	sqlQuery string,
	action string,
	duration time.Duration,
) {
	args := []any{logAttrDurationMS, es.toMilliseconds(duration), logAttrQuery, sqlQuery}

	if es.contextualLogger != nil {
		es.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, args...)
		return
	}

	if es.logger != nil {
		es.logger.Debug(logMsgSQLExecuted+action, args...)
	}
}

// logOperationContext logs operational information at info level.
func (es *EventStore) logOperationContext(ctx context.Context, msg string, args ...any) {
	if es.contextualLogger != nil {
		es.contextualLogger.InfoContext(ctx, logMsgOperation+msg, args...)
		return
	}

	if es.logger != nil {
		es.logger.Info(logMsgOperation+msg, args...)
	}
}

// logWarnContext logs non-critical failures such as cleanup errors.
func (es *EventStore) logWarnContext(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if es.contextualLogger != nil {
		es.contextualLogger.WarnContext(ctx, msg, allArgs...)
		return
	}

	if es.logger != nil {
		es.logger.Warn(msg, allArgs...)
	}
}

// logErrorContext logs failures that make an operation fail.
func (es *EventStore) logErrorContext(ctx context.Context, msg string, err error, args ...any) {
	allArgs := append([]any{logAttrError, err.Error()}, args...)

	if es.contextualLogger != nil {
		es.contextualLogger.ErrorContext(ctx, msg, allArgs...)
		return
	}

	if es.logger != nil {
		es.logger.Error(msg, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (es *EventStore) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func (es *EventStore) recordErrorMetricsContext(ctx context.Context, operation, errorType string) {
	eventstore.IncrementCounter(ctx, es.metricsCollector, metricDatabaseErrors, map[string]string{
		spanAttrOperation: operation,
		labelStatus:       eventstore.StatusError,
		spanAttrErrorType: errorType,
	})
}

func (es *EventStore) recordDurationMetricsContext(
	ctx context.Context,
	metricName string,
	duration time.Duration,
	operation, status string,
) {
	eventstore.RecordDuration(ctx, es.metricsCollector, metricName, duration, map[string]string{
		spanAttrOperation: operation,
		labelStatus:       status,
	})
}

func (es *EventStore) recordConcurrencyConflictMetrics(ctx context.Context, operation string) {
	eventstore.IncrementCounter(ctx, es.metricsCollector, metricVersionConflicts, map[string]string{
		spanAttrOperation: operation,
		labelConflictType: conflictTypeVersion,
	})
}

func (es *EventStore) startTraceSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, eventstore.SpanContext) {
	if es.tracingCollector != nil {
		return es.tracingCollector.StartSpan(ctx, name, attrs)
	}

	return ctx, nil
}

func (es *EventStore) finishTraceSpan(span eventstore.SpanContext, status string, attrs map[string]string) {
	if es.tracingCollector != nil && span != nil {
		es.tracingCollector.FinishSpan(span, status, attrs)
	}
}

// spanObserver finishes one span. It is a no-op without a tracing collector.
type spanObserver struct {
	es   *EventStore
	span eventstore.SpanContext
}

// appendTracingObserver and queryTracingObserver name the two usages of spanObserver.
type (
	appendTracingObserver = spanObserver
	queryTracingObserver  = spanObserver
)

func (es *EventStore) startAppendTracing(ctx context.Context, record eventstore.EventRecord) (context.Context, *appendTracingObserver) {
	ctx, span := es.startTraceSpan(ctx, spanNameAppend, map[string]string{
		spanAttrOperation: logActionAppend,
		spanAttrStreamKey: record.StreamKey,
		spanAttrVersion:   strconv.Itoa(record.AggregateVersion),
		spanAttrEventType: record.EventTypeName,
	})

	return ctx, &appendTracingObserver{es: es, span: span}
}

func (es *EventStore) startLoadTracing(ctx context.Context, streamKey string) (context.Context, *queryTracingObserver) {
	ctx, span := es.startTraceSpan(ctx, spanNameLoad, map[string]string{
		spanAttrOperation: logActionLoad,
		spanAttrStreamKey: streamKey,
	})

	return ctx, &queryTracingObserver{es: es, span: span}
}

func (es *EventStore) startCommitTracing(ctx context.Context) (context.Context, *spanObserver) {
	ctx, span := es.startTraceSpan(ctx, spanNameCommit, map[string]string{spanAttrOperation: logActionCommit})

	return ctx, &spanObserver{es: es, span: span}
}

func (es *EventStore) startOutboxTracing(ctx context.Context, spanName string) (context.Context, *queryTracingObserver) {
	ctx, span := es.startTraceSpan(ctx, spanName, map[string]string{spanAttrOperation: spanName})

	return ctx, &queryTracingObserver{es: es, span: span}
}

func (so *spanObserver) finishError(errorType string) {
	so.es.finishTraceSpan(so.span, eventstore.StatusError, map[string]string{spanAttrErrorType: errorType})
}

// finishSuccess optionally records how many records or messages the operation touched.
func (so *spanObserver) finishSuccess(duration time.Duration, count ...int) {
	attrs := map[string]string{spanAttrDurationMS: fmt.Sprintf("%.2f", float64(duration.Nanoseconds())/1e6)}
	if len(count) > 0 {
		attrs[spanAttrRecordCount] = strconv.Itoa(count[0])
	}

	so.es.finishTraceSpan(so.span, eventstore.StatusSuccess, attrs)
}

type appendMetricsObserver struct {
	es  *EventStore
	ctx context.Context
}

type loadMetricsObserver struct {
	es  *EventStore
	ctx context.Context
}

func (es *EventStore) startAppendMetrics(ctx context.Context) *appendMetricsObserver {
	return &appendMetricsObserver{es: es, ctx: ctx}
}

func (es *EventStore) startLoadMetrics(ctx context.Context) *loadMetricsObserver {
	return &loadMetricsObserver{es: es, ctx: ctx}
}

func (amo *appendMetricsObserver) recordSuccess(duration time.Duration) {
	amo.es.recordDurationMetricsContext(amo.ctx, metricAppendDuration, duration, logActionAppend, eventstore.StatusSuccess)
}

func (amo *appendMetricsObserver) recordError(errorType string) {
	amo.es.recordErrorMetricsContext(amo.ctx, logActionAppend, errorType)
}

func (amo *appendMetricsObserver) recordConflict() {
	amo.es.recordConcurrencyConflictMetrics(amo.ctx, logActionAppend)
}

func (lmo *loadMetricsObserver) recordSuccess(duration time.Duration, recordCount int) {
	lmo.es.recordDurationMetricsContext(lmo.ctx, metricLoadDuration, duration, logActionLoad, eventstore.StatusSuccess)
	eventstore.RecordValue(lmo.ctx, lmo.es.metricsCollector, metricRecordsLoaded, float64(recordCount), map[string]string{
		spanAttrOperation: logActionLoad,
	})
}

func (lmo *loadMetricsObserver) recordError(errorType string) {
	lmo.es.recordErrorMetricsContext(lmo.ctx, logActionLoad, errorType)
}
