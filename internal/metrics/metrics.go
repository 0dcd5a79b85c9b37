package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "certify"

// Metrics owns its registry so tests and multiple binaries never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	scans           *prometheus.CounterVec
	mintOutcomes    *prometheus.CounterVec
	chainLatency    *prometheus.HistogramVec
	storageLatency  *prometheus.HistogramVec
	artifactJobs    *prometheus.CounterVec
	artifactBacklog prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		scans: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attendance_scans_total",
			Help:      "QR scans by result.",
		}, []string{"result"}),
		mintOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mint_outcomes_total",
			Help:      "Per-attendee mint outcomes.",
		}, []string{"outcome"}),
		chainLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_call_duration_seconds",
			Help:      "Latency of blockchain gateway calls.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"op", "mode"}),
		storageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_upload_duration_seconds",
			Help:      "Latency of content-addressed uploads.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		artifactJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_jobs_total",
			Help:      "Certificate PDF jobs by result.",
		}, []string{"result"}),
		artifactBacklog: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifact_queue_depth",
			Help:      "Jobs waiting in the local artifact queue.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The Observe* and Inc* helpers are nil-safe so components can run without metrics.

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) IncScan(result string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(result).Inc()
}

func (m *Metrics) IncMintOutcome(outcome string) {
	if m == nil {
		return
	}
	m.mintOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveChain(op, mode string, d time.Duration) {
	if m == nil {
		return
	}
	m.chainLatency.WithLabelValues(op, mode).Observe(d.Seconds())
}

func (m *Metrics) ObserveStorage(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.storageLatency.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) IncArtifactJob(result string) {
	if m == nil {
		return
	}
	m.artifactJobs.WithLabelValues(result).Inc()
}

func (m *Metrics) SetArtifactBacklog(n int) {
	if m == nil {
		return
	}
	m.artifactBacklog.Set(float64(n))
}
