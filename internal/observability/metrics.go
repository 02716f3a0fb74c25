package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "activity_batch_engine"

// Metrics stores Prometheus collectors used by the API, services and event dispatch.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	batchWritesTotal     *prometheus.CounterVec
	enrollmentChanges    *prometheus.CounterVec
	catalogSyncFailures  prometheus.Counter
	eventsPublishedTotal *prometheus.CounterVec
	eventsFailedTotal    *prometheus.CounterVec
	eventsPending        prometheus.Gauge
	collaboratorDuration *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		batchWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "batch_writes_total",
				Help:      "Total number of batch rows written grouped by action.",
			},
			[]string{"action"},
		),
		enrollmentChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "enrollment_changes_total",
				Help:      "Total number of users whose enrollment changed grouped by action.",
			},
			[]string{"action"},
		),
		catalogSyncFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "catalog_sync_failures_total",
				Help:      "Total number of failed catalog batch summary updates.",
			},
		),
		eventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_published_total",
				Help:      "Total number of instruction events published grouped by topic.",
			},
			[]string{"topic"},
		),
		eventsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "events_failed_total",
				Help:      "Total number of instruction events dropped grouped by topic and reason.",
			},
			[]string{"topic", "reason"},
		),
		eventsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "events_pending",
				Help:      "Current number of instruction events waiting to be published.",
			},
		),
		collaboratorDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "collaborator_request_duration_seconds",
				Help:      "Outbound collaborator call duration in seconds grouped by collaborator and outcome.",
				Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"collaborator", "outcome"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.batchWritesTotal,
		m.enrollmentChanges,
		m.catalogSyncFailures,
		m.eventsPublishedTotal,
		m.eventsFailedTotal,
		m.eventsPending,
		m.collaboratorDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncBatchWrite(action string) {
	if m == nil {
		return
	}
	m.batchWritesTotal.WithLabelValues(normalizeLabel(action)).Inc()
}

func (m *Metrics) AddEnrollmentChanges(action string, users int) {
	if m == nil || users <= 0 {
		return
	}
	m.enrollmentChanges.WithLabelValues(normalizeLabel(action)).Add(float64(users))
}

func (m *Metrics) IncCatalogSyncFailure() {
	if m == nil {
		return
	}
	m.catalogSyncFailures.Inc()
}

func (m *Metrics) IncEventPublished(topic string) {
	if m == nil {
		return
	}
	m.eventsPublishedTotal.WithLabelValues(normalizeLabel(topic)).Inc()
}

func (m *Metrics) IncEventFailed(topic string, reason string) {
	if m == nil {
		return
	}
	m.eventsFailedTotal.WithLabelValues(normalizeLabel(topic), normalizeLabel(reason)).Inc()
}

func (m *Metrics) SetEventsPending(n int) {
	if m == nil {
		return
	}
	m.eventsPending.Set(float64(n))
}

func (m *Metrics) ObserveCollaboratorCall(collaborator string, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.collaboratorDuration.WithLabelValues(normalizeLabel(collaborator), normalizeLabel(outcome)).Observe(seconds)
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
