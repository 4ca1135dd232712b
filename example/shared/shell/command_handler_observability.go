package shell

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/AntonStoeckl/aggregate-eventstore-go/domain"
	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

const (
	// CommandHandlerDurationMetric tracks command handler execution duration.
	CommandHandlerDurationMetric = "commandhandler_handle_duration_seconds"
	// CommandHandlerCallsMetric tracks total command handler calls.
	CommandHandlerCallsMetric = "commandhandler_handle_calls_total"

	// StatusRejected indicates that a business rule refused the command.
	StatusRejected = "rejected"

	// LogMsgCommandStarted is logged when command processing begins.
	LogMsgCommandStarted = "command handler started"
	// LogMsgCommandCompleted is logged when command processing succeeds.
	LogMsgCommandCompleted = "command handler completed"
	// LogMsgCommandRejected is logged when a business rule refused the command.
	LogMsgCommandRejected = "command handler rejected command"
	// LogMsgCommandFailed is logged when command processing fails.
	LogMsgCommandFailed = "command handler failed"

	// LogAttrCommandType identifies the command type in logs.
	LogAttrCommandType = "command_type"
	// LogAttrStatus indicates the command processing status.
	LogAttrStatus = "status"
	// LogAttrDurationMS indicates the processing duration in milliseconds.
	LogAttrDurationMS = "duration_ms"
	// LogAttrError contains error details.
	LogAttrError = "error"

	// SpanNameCommandHandle is the tracing span name for command handling.
	SpanNameCommandHandle = "commandhandler.handle"
)

// ClassifyError maps a command handler error to the status used in metrics, spans and logs.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return eventstore.StatusSuccess
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return eventstore.StatusCanceled
	case errors.Is(err, eventstore.ErrVersionConflict):
		return eventstore.StatusConflict
	case errors.Is(err, domain.ErrBusinessRuleViolation):
		return StatusRejected
	default:
		return eventstore.StatusError
	}
}

// StartCommandSpan starts the span of one Handle call. It returns ctx and a nil span without a collector.
func StartCommandSpan(ctx context.Context, collector TracingCollector, commandType string) (context.Context, SpanContext) {
	if collector == nil {
		return ctx, nil
	}

	return collector.StartSpan(ctx, SpanNameCommandHandle, map[string]string{LogAttrCommandType: commandType})
}

// FinishCommandSpan finishes span with status and, for failures, the error message.
func FinishCommandSpan(collector TracingCollector, span SpanContext, status string, duration time.Duration, err error) {
	if collector == nil || span == nil {
		return
	}

	attrs := map[string]string{LogAttrDurationMS: formatMilliseconds(duration)}
	if err != nil {
		attrs[LogAttrError] = err.Error()
	}

	collector.FinishSpan(span, status, attrs)
}

// RecordCommandMetrics records the call counter and the duration of one Handle call.
func RecordCommandMetrics(
	ctx context.Context,
	collector MetricsCollector,
	commandType string,
	status string,
	duration time.Duration,
) {
	labels := map[string]string{LogAttrCommandType: commandType, LogAttrStatus: status}

	eventstore.IncrementCounter(ctx, collector, CommandHandlerCallsMetric, labels)
	eventstore.RecordDuration(ctx, collector, CommandHandlerDurationMetric, duration, labels)
}

// LogCommandStart logs the start of a Handle call at debug level.
func LogCommandStart(ctx context.Context, logger Logger, contextualLogger ContextualLogger, commandType string) {
	if contextualLogger != nil {
		contextualLogger.DebugContext(ctx, LogMsgCommandStarted, LogAttrCommandType, commandType)
		return
	}

	if logger != nil {
		logger.Debug(LogMsgCommandStarted, LogAttrCommandType, commandType)
	}
}

// LogCommandOutcome logs the end of a Handle call. Success is logged at info level,
// rejections at warn level and failures at error level.
func LogCommandOutcome(
	ctx context.Context,
	logger Logger,
	contextualLogger ContextualLogger,
	commandType string,
	status string,
	duration time.Duration,
	err error,
) {
	args := []any{LogAttrCommandType, commandType, LogAttrStatus, status, LogAttrDurationMS, toMilliseconds(duration)}
	if err != nil {
		args = append(args, LogAttrError, err.Error())
	}

	switch status {
	case eventstore.StatusSuccess:
		logAt(ctx, logger, contextualLogger, levelInfo, LogMsgCommandCompleted, args)
	case StatusRejected:
		logAt(ctx, logger, contextualLogger, levelWarn, LogMsgCommandRejected, args)
	default:
		logAt(ctx, logger, contextualLogger, levelError, LogMsgCommandFailed, args)
	}
}

type logLevel int

const (
	levelInfo logLevel = iota
	levelWarn
	levelError
)

func logAt(ctx context.Context, logger Logger, contextualLogger ContextualLogger, level logLevel, msg string, args []any) {
	if contextualLogger != nil {
		switch level {
		case levelInfo:
			contextualLogger.InfoContext(ctx, msg, args...)
		case levelWarn:
			contextualLogger.WarnContext(ctx, msg, args...)
		default:
			contextualLogger.ErrorContext(ctx, msg, args...)
		}

		return
	}

	if logger == nil {
		return
	}

	switch level {
	case levelInfo:
		logger.Info(msg, args...)
	case levelWarn:
		logger.Warn(msg, args...)
	default:
		logger.Error(msg, args...)
	}
}

func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}

func formatMilliseconds(d time.Duration) string {
	return strconv.FormatFloat(toMilliseconds(d), 'f', 2, 64)
}
