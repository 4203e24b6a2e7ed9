package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "academy"

// Metrics holds the Prometheus collectors of the application.
// Every instance owns its registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	CertificatesIssued   prometheus.Counter
	ChatMessagesSent     prometheus.Counter
	WebsocketClients     prometheus.Gauge
	JobRuns              *prometheus.CounterVec
	StorageObjectsReaped prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CertificatesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Course certificates issued.",
		}),
		ChatMessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_sent_total",
			Help:      "Chat messages persisted.",
		}),
		WebsocketClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Open chat websocket connections.",
		}),
		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs, by job and outcome.",
		}, []string{"job", "outcome"}),
		StorageObjectsReaped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_objects_reaped_total",
			Help:      "Stale uploads deleted by the reaper.",
		}),
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.RequestsTotal.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// JobDone records the outcome of a scheduled job run.
func (m *Metrics) JobDone(job string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.JobRuns.WithLabelValues(job, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
