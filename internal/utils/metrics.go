// internal/utils/metrics.go
package utils

import (
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects application counters and histograms
type MetricsCollector struct {
	counters   map[string]*int64
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Histogram tracks count, sum, min and max
type Histogram struct {
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the process-wide collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

// NewMetricsCollector creates an empty collector (tests use their own).
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*int64),
		histograms: make(map[string]*Histogram),
	}
}

// IncrementCounter increments a counter by one
func (m *MetricsCollector) IncrementCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds value to a counter; read lock on the fast path
func (m *MetricsCollector) AddCounter(name string, value int64) {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		counter, exists = m.counters[name]
		if !exists {
			counter = new(int64)
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	atomic.AddInt64(counter, value)
}

// GetCounterValue returns the current value, 0 if unknown
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}
	return atomic.LoadInt64(counter)
}

// RecordHistogram records a sample
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		histogram, exists = m.histograms[name]
		if !exists {
			histogram = &Histogram{min: value, max: value}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.mu.Lock()
	defer histogram.mu.Unlock()

	histogram.count++
	histogram.sum += value
	if value < histogram.min {
		histogram.min = value
	}
	if value > histogram.max {
		histogram.max = value
	}
}

// Snapshot is a point-in-time copy of all metrics
type Snapshot struct {
	Counters   map[string]int64            `json:"counters"`
	Histograms map[string]map[string]int64 `json:"histograms"`
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		Counters:   make(map[string]int64, len(m.counters)),
		Histograms: make(map[string]map[string]int64, len(m.histograms)),
	}
	for name, counter := range m.counters {
		snap.Counters[name] = atomic.LoadInt64(counter)
	}
	for name, h := range m.histograms {
		h.mu.Lock()
		snap.Histograms[name] = map[string]int64{
			"count": h.count,
			"sum":   h.sum,
			"min":   h.min,
			"max":   h.max,
		}
		h.mu.Unlock()
	}
	return snap
}

// CounterNames lists known counters in sorted order
func (m *MetricsCollector) CounterNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.counters))
	for name := range m.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metric names shared by the synthesis engine and the HTTP layer.
const (
	MetricGenerationGenerative = "generation.generative"
	MetricGenerationFallback   = "generation.fallback"
	MetricGenerationDowngraded = "generation.downgraded"
	MetricTranslationOK        = "translation.ok"
	MetricTranslationFallback  = "translation.fallback"
	MetricLLMLatency           = "llm.latency_ms"
	MetricAPIRequests          = "api.requests"
	MetricAPILatency           = "api.latency_ms"
)

// SynthesisMetrics records generation outcomes
type SynthesisMetrics struct {
	metrics *MetricsCollector
}

// NewSynthesisMetrics wraps a collector; nil uses the process collector
func NewSynthesisMetrics(m *MetricsCollector) *SynthesisMetrics {
	if m == nil {
		m = GetMetricsCollector()
	}
	return &SynthesisMetrics{metrics: m}
}

// Collector exposes the underlying collector
func (s *SynthesisMetrics) Collector() *MetricsCollector {
	return s.metrics
}

// RecordGeneration counts a generation by outcome and remote latency
func (s *SynthesisMetrics) RecordGeneration(provider string, generative bool, duration time.Duration) {
	if generative {
		s.metrics.IncrementCounter(MetricGenerationGenerative)
		s.metrics.IncrementCounter(MetricGenerationGenerative + "." + provider)
	} else {
		s.metrics.IncrementCounter(MetricGenerationFallback)
	}
	if duration > 0 {
		s.metrics.RecordHistogram(MetricLLMLatency, duration.Milliseconds())
	}
}

// RecordDowngrade moves one generation from generative to fallback, used when
// generated text turns out unusable after post-processing.
func (s *SynthesisMetrics) RecordDowngrade(provider string) {
	s.metrics.AddCounter(MetricGenerationGenerative, -1)
	if provider != "" {
		s.metrics.AddCounter(MetricGenerationGenerative+"."+provider, -1)
	}
	s.metrics.IncrementCounter(MetricGenerationFallback)
	s.metrics.IncrementCounter(MetricGenerationDowngraded)
}

// RecordTranslation counts a translation outcome
func (s *SynthesisMetrics) RecordTranslation(ok bool) {
	if ok {
		s.metrics.IncrementCounter(MetricTranslationOK)
		return
	}
	s.metrics.IncrementCounter(MetricTranslationFallback)
}

// RecordAPIRequest records one HTTP request by route and status class
func (s *SynthesisMetrics) RecordAPIRequest(route, method string, statusCode int, duration time.Duration) {
	s.metrics.IncrementCounter(MetricAPIRequests)
	s.metrics.IncrementCounter(MetricAPIRequests + "." + method + " " + route)
	s.metrics.IncrementCounter(MetricAPIRequests + ".status_" + strconv.Itoa(statusCode/100) + "xx")
	s.metrics.RecordHistogram(MetricAPILatency, duration.Milliseconds())
}
