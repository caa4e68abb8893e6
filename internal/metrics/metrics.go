// Package metrics exposes Prometheus metrics for the clipper. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clipper"

// Batch outcomes recorded by BatchFinished.
const (
	BatchCompleted          = "completed"
	BatchRejected           = "rejected"
	BatchPreconditionFailed = "precondition_failed"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	segmentsTotal       *prometheus.CounterVec
	segmentDuration     *prometheus.HistogramVec
	batchesTotal        *prometheus.CounterVec
	probesTotal         *prometheus.CounterVec
	exportActive        prometheus.Gauge
	progressClients     prometheus.Gauge
	serviceInfo         *prometheus.GaugeVec
}

// New creates the collectors on a private registry.
func New(version string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	m.httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	m.segmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_exported_total",
			Help:      "Segments processed by batch exports, by target format and result",
		},
		[]string{"format", "result"},
	)

	m.segmentDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_export_duration_seconds",
			Help:      "Wall time spent cutting one segment",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"format"},
	)

	m.batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_batches_total",
			Help:      "Batch export requests by outcome",
		},
		[]string{"result"},
	)

	m.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Video metadata probes by result",
		},
		[]string{"result"},
	)

	m.exportActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "export_active",
		Help:      "1 while a batch export is running",
	})

	m.progressClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "progress_clients",
		Help:      "Connected export progress subscribers",
	})

	m.serviceInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "service_info",
			Help:      "Service information",
		},
		[]string{"version"},
	)

	m.registry.MustRegister(
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.segmentsTotal,
		m.segmentDuration,
		m.batchesTotal,
		m.probesTotal,
		m.exportActive,
		m.progressClients,
		m.serviceInfo,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m.serviceInfo.WithLabelValues(version).Set(1)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) SegmentExported(format string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.segmentsTotal.WithLabelValues(format, result).Inc()
	m.segmentDuration.WithLabelValues(format).Observe(d.Seconds())
}

func (m *Metrics) BatchFinished(result string) {
	if m == nil {
		return
	}
	m.batchesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) Probe(success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.probesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetExportActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.exportActive.Set(1)
	} else {
		m.exportActive.Set(0)
	}
}

func (m *Metrics) SetProgressClients(n int) {
	if m == nil {
		return
	}
	m.progressClients.Set(float64(n))
}
