package testdoubles

import (
	"maps"
	"sync"
	"time"
)

// SpyDurationRecord represents a recorded duration metric call.
type SpyDurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// SpyCounterRecord represents a recorded counter increment call.
type SpyCounterRecord struct {
	Metric string
	Labels map[string]string
}

// SpyValueRecord represents a recorded value metric call.
type SpyValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

// MetricsCollectorSpy captures metrics calls.
type MetricsCollectorSpy struct {
	durationRecords []SpyDurationRecord
	counterRecords  []SpyCounterRecord
	valueRecords    []SpyValueRecord
	mu              sync.Mutex
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = append(s.durationRecords, SpyDurationRecord{Metric: metric, Duration: duration, Labels: maps.Clone(labels)})
}

func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterRecords = append(s.counterRecords, SpyCounterRecord{Metric: metric, Labels: maps.Clone(labels)})
}

func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valueRecords = append(s.valueRecords, SpyValueRecord{Metric: metric, Value: value, Labels: maps.Clone(labels)})
}

// DurationRecords returns the duration calls for metric.
func (s *MetricsCollectorSpy) DurationRecords(metric string) []SpyDurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []SpyDurationRecord
	for _, r := range s.durationRecords {
		if r.Metric == metric {
			result = append(result, r)
		}
	}

	return result
}

// CounterRecords returns the counter calls for metric.
func (s *MetricsCollectorSpy) CounterRecords(metric string) []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []SpyCounterRecord
	for _, r := range s.counterRecords {
		if r.Metric == metric {
			result = append(result, r)
		}
	}

	return result
}

// ValueRecords returns the value calls for metric.
func (s *MetricsCollectorSpy) ValueRecords(metric string) []SpyValueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []SpyValueRecord
	for _, r := range s.valueRecords {
		if r.Metric == metric {
			result = append(result, r)
		}
	}

	return result
}

// HasDurationWithLabel reports whether metric was recorded with the label key=value.
func (s *MetricsCollectorSpy) HasDurationWithLabel(metric string, key string, value string) bool {
	for _, r := range s.DurationRecords(metric) {
		if r.Labels[key] == value {
			return true
		}
	}

	return false
}

// HasCounterWithLabel reports whether metric was incremented with the label key=value.
func (s *MetricsCollectorSpy) HasCounterWithLabel(metric string, key string, value string) bool {
	for _, r := range s.CounterRecords(metric) {
		if r.Labels[key] == value {
			return true
		}
	}

	return false
}

// Reset clears all captured calls.
func (s *MetricsCollectorSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = nil
	s.counterRecords = nil
	s.valueRecords = nil
}
