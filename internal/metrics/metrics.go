// Package metrics exposes Prometheus collectors for the ingestion pipeline.
package metrics

import (
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const (
	namespace = "ingest"

	errorGatherFormat = "gathering metrics: %w"
	errorWriteFormat  = "writing metric family %s: %w"
)

// Cache lookup outcomes.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultStale = "stale"
)

// Backend operations.
const (
	OperationGet = "get"
	OperationPut = "put"
)

// Collector groups every pipeline metric. A nil *Collector records nothing.
type Collector struct {
	cacheLookups      *prometheus.CounterVec
	backendErrors     *prometheus.CounterVec
	builds            prometheus.Counter
	buildFailures     prometheus.Counter
	coalescedWaiters  prometheus.Counter
	inFlightBuilds    prometheus.Gauge
	buildDuration     prometheus.Histogram
	acquisitionsQueue prometheus.Gauge
}

// New registers the collectors with registerer. A nil registerer creates
// unregistered collectors.
func New(registerer prometheus.Registerer) *Collector {
	factory := promauto.With(registerer)
	return &Collector{
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Digest cache lookups by backend and result",
		}, []string{"backend", "result"}),
		backendErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_backend_errors_total",
			Help:      "Digest cache backend failures by backend and operation",
		}, []string{"backend", "operation"}),
		builds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Digest builds started",
		}),
		buildFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_failures_total",
			Help:      "Digest builds that returned an error",
		}),
		coalescedWaiters: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coalesced_requests_total",
			Help:      "Requests that attached to an in-flight build",
		}),
		inFlightBuilds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "builds_in_flight",
			Help:      "Builds currently running",
		}),
		buildDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Digest build duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		acquisitionsQueue: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "acquisitions_waiting",
			Help:      "Builds waiting for an acquisition slot",
		}),
	}
}

// CacheLookup counts one lookup against backend.
func (collector *Collector) CacheLookup(backend string, result string) {
	if collector == nil {
		return
	}
	collector.cacheLookups.WithLabelValues(backend, result).Inc()
}

// BackendError counts one failed backend operation.
func (collector *Collector) BackendError(backend string, operation string) {
	if collector == nil {
		return
	}
	collector.backendErrors.WithLabelValues(backend, operation).Inc()
}

// BuildStarted counts a build and marks it in flight. The returned function ends it.
func (collector *Collector) BuildStarted() func(seconds float64, failed bool) {
	if collector == nil {
		return func(float64, bool) {}
	}
	collector.builds.Inc()
	collector.inFlightBuilds.Inc()
	return func(seconds float64, failed bool) {
		collector.inFlightBuilds.Dec()
		collector.buildDuration.Observe(seconds)
		if failed {
			collector.buildFailures.Inc()
		}
	}
}

// Coalesced counts a request that joined an existing build.
func (collector *Collector) Coalesced() {
	if collector == nil {
		return
	}
	collector.coalescedWaiters.Inc()
}

// AcquisitionQueued tracks a build waiting for admission. The returned function
// removes it from the queue.
func (collector *Collector) AcquisitionQueued() func() {
	if collector == nil {
		return func() {}
	}
	collector.acquisitionsQueue.Inc()
	return collector.acquisitionsQueue.Dec
}

// WriteText writes everything gatherer holds in the Prometheus text exposition format.
func WriteText(writer io.Writer, gatherer prometheus.Gatherer) error {
	families, gatherError := gatherer.Gather()
	if gatherError != nil {
		return fmt.Errorf(errorGatherFormat, gatherError)
	}
	for _, family := range families {
		if _, writeError := expfmt.MetricFamilyToText(writer, family); writeError != nil {
			return fmt.Errorf(errorWriteFormat, family.GetName(), writeError)
		}
	}
	return nil
}
