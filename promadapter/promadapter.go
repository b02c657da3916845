// Package promadapter provides a Prometheus implementation of the
// asyncstore metrics interface, for callers who want plug-and-play metrics
// without implementing the interface themselves.
package promadapter

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default histogram buckets for latency metrics (in seconds).
var defaultBuckets = []float64{
	.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10,
}

// Collector implements asyncstore.MetricsCollector on top of a Prometheus
// registerer. Collectors for each metric name are created lazily on first
// use, with the label keys of that first observation; later observations
// must use the same keys.
type Collector struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	histograms map[string]*prometheus.HistogramVec
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
}

// NewCollector builds a collector registering its metrics with the given
// registerer. A nil registerer falls back to the default one.
func NewCollector(registerer prometheus.Registerer) *Collector {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &Collector{
		registerer: registerer,
		histograms: make(map[string]*prometheus.HistogramVec),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// RecordDuration observes a duration in seconds on the named histogram.
func (c *Collector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	c.histogram(metric, labelKeys(labels)).With(labelValues(labels)).Observe(duration.Seconds())
}

// IncrementCounter increments the named counter.
func (c *Collector) IncrementCounter(metric string, labels map[string]string) {
	c.counter(metric, labelKeys(labels)).With(labelValues(labels)).Inc()
}

// RecordValue sets the named gauge to the given value.
func (c *Collector) RecordValue(metric string, value float64, labels map[string]string) {
	c.gauge(metric, labelKeys(labels)).With(labelValues(labels)).Set(value)
}

func (c *Collector) histogram(metric string, keys []string) *prometheus.HistogramVec {
	c.mu.Lock()
	defer c.mu.Unlock()

	if vec, ok := c.histograms[metric]; ok {
		return vec
	}

	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metric,
		Buckets: defaultBuckets,
	}, keys)
	c.registerer.MustRegister(vec)
	c.histograms[metric] = vec

	return vec
}

func (c *Collector) counter(metric string, keys []string) *prometheus.CounterVec {
	c.mu.Lock()
	defer c.mu.Unlock()

	if vec, ok := c.counters[metric]; ok {
		return vec
	}

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: metric}, keys)
	c.registerer.MustRegister(vec)
	c.counters[metric] = vec

	return vec
}

func (c *Collector) gauge(metric string, keys []string) *prometheus.GaugeVec {
	c.mu.Lock()
	defer c.mu.Unlock()

	if vec, ok := c.gauges[metric]; ok {
		return vec
	}

	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: metric}, keys)
	c.registerer.MustRegister(vec)
	c.gauges[metric] = vec

	return vec
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}

func labelValues(labels map[string]string) prometheus.Labels {
	values := make(prometheus.Labels, len(labels))
	for key, value := range labels {
		values[key] = value
	}

	return values
}
