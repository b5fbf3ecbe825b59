package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Decode outcomes.
const (
	OutcomeOK              = "ok"
	OutcomeDecryptionError = "decryption_error"
	OutcomeBadRequest      = "bad_request"
	OutcomeError           = "error"
)

// Metrics provides observability for barcode decoding.
type Metrics struct {
	registry *prometheus.Registry

	// Decode latency by document type
	DecodeLatency *prometheus.HistogramVec

	// Decode outcomes by document type and outcome
	DecodeOutcome *prometheus.CounterVec

	// Record cache lookups by result
	CacheLookups *prometheus.CounterVec

	// Decodes currently holding a slot
	DecodesInFlight prometheus.Gauge

	// Time spent waiting for a decode slot
	SlotWait prometheus.Histogram
}

// New creates a Metrics instance on its own registry, so several instances can coexist.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		DecodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "licence_decoder_decode_duration_seconds",
			Help:    "Duration of barcode decryption and parsing by document type",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"document_type"}), // document_type: "drivers", "vehicle"

		DecodeOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "licence_decoder_decodes_total",
			Help: "Total decode outcomes by document type and outcome",
		}, []string{"document_type", "outcome"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "licence_decoder_cache_lookups_total",
			Help: "Total record cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"

		DecodesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "licence_decoder_decodes_in_flight",
			Help: "Number of decodes currently running",
		}),

		SlotWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "licence_decoder_slot_wait_seconds",
			Help:    "Time spent waiting for a decode slot",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveDecode records one decode with its latency and outcome.
func (m *Metrics) ObserveDecode(documentType, outcome string, d time.Duration) {
	if m != nil {
		m.DecodeLatency.WithLabelValues(documentType).Observe(d.Seconds())
		m.DecodeOutcome.WithLabelValues(documentType, outcome).Inc()
	}
}

// IncrementOutcome records an outcome without a latency, for requests rejected before decoding.
func (m *Metrics) IncrementOutcome(documentType, outcome string) {
	if m != nil {
		m.DecodeOutcome.WithLabelValues(documentType, outcome).Inc()
	}
}

// IncrementCacheLookup records a cache hit, miss or error.
func (m *Metrics) IncrementCacheLookup(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

// ObserveSlotWait records how long a request waited for a decode slot.
func (m *Metrics) ObserveSlotWait(d time.Duration) {
	if m != nil {
		m.SlotWait.Observe(d.Seconds())
	}
}

// DecodeStarted marks a decode as running. The returned func marks it done.
func (m *Metrics) DecodeStarted() func() {
	if m == nil {
		return func() {}
	}
	m.DecodesInFlight.Inc()
	return m.DecodesInFlight.Dec
}
