package testdoubles

import (
	"context"
	"maps"
	"sync"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

// SpySpanContext is the span handed out by TracingCollectorSpy.
type SpySpanContext struct {
	name       string
	status     string
	attributes map[string]string
	mu         sync.Mutex
}

// SetStatus implements eventstore.SpanContext.
func (c *SpySpanContext) SetStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = status
}

// AddAttribute implements eventstore.SpanContext.
func (c *SpySpanContext) AddAttribute(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attributes == nil {
		c.attributes = make(map[string]string)
	}
	c.attributes[key] = value
}

// SpySpanRecord represents a finished span.
type SpySpanRecord struct {
	Name       string
	Status     string
	Attributes map[string]string
}

// TracingCollectorSpy captures started and finished spans.
type TracingCollectorSpy struct {
	started  []string
	finished []SpySpanRecord
	mu       sync.Mutex
}

// NewTracingCollectorSpy creates a new TracingCollectorSpy.
func NewTracingCollectorSpy() *TracingCollectorSpy {
	return &TracingCollectorSpy{}
}

// StartSpan implements eventstore.TracingCollector.
func (s *TracingCollectorSpy) StartSpan(
	ctx context.Context,
	name string,
	attrs map[string]string,
) (context.Context, eventstore.SpanContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.started = append(s.started, name)

	return ctx, &SpySpanContext{name: name, attributes: maps.Clone(attrs)}
}

// FinishSpan implements eventstore.TracingCollector.
func (s *TracingCollectorSpy) FinishSpan(spanCtx eventstore.SpanContext, status string, attrs map[string]string) {
	span, ok := spanCtx.(*SpySpanContext)
	if !ok {
		return
	}

	span.mu.Lock()
	merged := maps.Clone(span.attributes)
	name := span.name
	span.mu.Unlock()

	if merged == nil {
		merged = make(map[string]string)
	}
	maps.Copy(merged, attrs)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.finished = append(s.finished, SpySpanRecord{Name: name, Status: status, Attributes: merged})
}

// StartedSpans returns the names of all started spans.
func (s *TracingCollectorSpy) StartedSpans() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.started...)
}

// FinishedSpans returns the finished spans with the given name.
func (s *TracingCollectorSpy) FinishedSpans(name string) []SpySpanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []SpySpanRecord
	for _, r := range s.finished {
		if r.Name == name {
			result = append(result, r)
		}
	}

	return result
}

// HasFinishedSpanWithStatus reports whether a span with the given name finished with status.
func (s *TracingCollectorSpy) HasFinishedSpanWithStatus(name string, status string) bool {
	for _, r := range s.FinishedSpans(name) {
		if r.Status == status {
			return true
		}
	}

	return false
}
