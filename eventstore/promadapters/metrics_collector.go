package promadapters

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AntonStoeckl/aggregate-eventstore-go/eventstore"
)

const (
	helpDuration = "Duration of event store, dispatch and relay operations in seconds."
	helpCounter  = "Number of event store, dispatch and relay occurrences."
	helpValue    = "Last observed value of an event store, dispatch or relay measurement."
)

// DefaultBuckets are the histogram buckets for operation latencies, in seconds.
var DefaultBuckets = []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}

// Option configures a MetricsCollector.
type Option func(*MetricsCollector)

// WithNamespace prefixes every metric name with namespace and an underscore.
func WithNamespace(namespace string) Option {
	return func(m *MetricsCollector) {
		m.namespace = namespace
	}
}

// WithBuckets replaces DefaultBuckets.
func WithBuckets(buckets []float64) Option {
	return func(m *MetricsCollector) {
		m.buckets = slices.Clone(buckets)
	}
}

type histogramEntry struct {
	vec    *prometheus.HistogramVec
	labels []string
}

type counterEntry struct {
	vec    *prometheus.CounterVec
	labels []string
}

type gaugeEntry struct {
	vec    *prometheus.GaugeVec
	labels []string
}

// MetricsCollector implements eventstore.MetricsCollector with HistogramVec, CounterVec and GaugeVec.
// It is safe for concurrent use.
type MetricsCollector struct {
	registerer prometheus.Registerer
	namespace  string
	buckets    []float64
	mu         sync.Mutex
	histograms map[string]histogramEntry
	counters   map[string]counterEntry
	gauges     map[string]gaugeEntry
}

// NewMetricsCollector creates a MetricsCollector that registers its metrics on registerer.
func NewMetricsCollector(registerer prometheus.Registerer, options ...Option) *MetricsCollector {
	m := &MetricsCollector{
		registerer: registerer,
		buckets:    DefaultBuckets,
		histograms: make(map[string]histogramEntry),
		counters:   make(map[string]counterEntry),
		gauges:     make(map[string]gaugeEntry),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

// RecordDuration observes duration in seconds.
func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	entry, ok := m.histogram(metric, labels)
	if !ok {
		return
	}

	entry.vec.With(fixedLabels(entry.labels, labels)).Observe(duration.Seconds())
}

// IncrementCounter adds one to the counter.
func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	entry, ok := m.counter(metric, labels)
	if !ok {
		return
	}

	entry.vec.With(fixedLabels(entry.labels, labels)).Inc()
}

// RecordValue sets the gauge to value.
func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	entry, ok := m.gauge(metric, labels)
	if !ok {
		return
	}

	entry.vec.With(fixedLabels(entry.labels, labels)).Set(value)
}

func (m *MetricsCollector) histogram(metric string, labels map[string]string) (histogramEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.histograms[metric]; ok {
		return entry, true
	}

	names := labelNames(labels)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      metric,
		Help:      helpDuration,
		Buckets:   m.buckets,
	}, names)

	registered, ok := register(m.registerer, vec)
	if !ok {
		return histogramEntry{}, false
	}

	entry := histogramEntry{vec: registered, labels: names}
	m.histograms[metric] = entry

	return entry, true
}

func (m *MetricsCollector) counter(metric string, labels map[string]string) (counterEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.counters[metric]; ok {
		return entry, true
	}

	names := labelNames(labels)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      metric,
		Help:      helpCounter,
	}, names)

	registered, ok := register(m.registerer, vec)
	if !ok {
		return counterEntry{}, false
	}

	entry := counterEntry{vec: registered, labels: names}
	m.counters[metric] = entry

	return entry, true
}

func (m *MetricsCollector) gauge(metric string, labels map[string]string) (gaugeEntry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.gauges[metric]; ok {
		return entry, true
	}

	names := labelNames(labels)
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      metric,
		Help:      helpValue,
	}, names)

	registered, ok := register(m.registerer, vec)
	if !ok {
		return gaugeEntry{}, false
	}

	entry := gaugeEntry{vec: registered, labels: names}
	m.gauges[metric] = entry

	return entry, true
}

// register reuses a collector that another MetricsCollector already registered under the same name.
// The second result is false if the registry rejects the collector, e.g. for conflicting label names.
func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) (C, bool) {
	err := registerer.Register(collector)
	if err == nil {
		return collector, true
	}

	var alreadyRegistered prometheus.AlreadyRegisteredError
	if errors.As(err, &alreadyRegistered) {
		if existing, ok := alreadyRegistered.ExistingCollector.(C); ok {
			return existing, true
		}
	}

	var zero C

	return zero, false
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

func fixedLabels(names []string, labels map[string]string) prometheus.Labels {
	fixed := make(prometheus.Labels, len(names))
	for _, name := range names {
		fixed[name] = labels[name]
	}

	return fixed
}

var _ eventstore.MetricsCollector = (*MetricsCollector)(nil)
