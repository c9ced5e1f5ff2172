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

const metricsNamespace = "donation_engine"

// Metrics stores Prometheus collectors used by the API, the drip run and the
// donation event worker.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	donationsRegistered   *prometheus.CounterVec
	donationsSettled      *prometheus.CounterVec
	providerCallDuration  *prometheus.HistogramVec
	dripEmailsSentTotal   *prometheus.CounterVec
	dripEmailsFailedTotal *prometheus.CounterVec
	dripRunsTotal         *prometheus.CounterVec
	workerInflight        *prometheus.GaugeVec
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
		donationsRegistered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "donations_registered_total",
				Help:      "Donation registration attempts grouped by result.",
			},
			[]string{"result"},
		),
		donationsSettled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "donations_settled_total",
				Help:      "Donations moved to a terminal status by payment notifications.",
			},
			[]string{"status"},
		),
		providerCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Outbound provider call duration in seconds grouped by provider and operation.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider", "operation"},
		),
		dripEmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "drip_emails_sent_total",
				Help:      "Drip campaign emails sent grouped by target step.",
			},
			[]string{"step"},
		),
		dripEmailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "drip_emails_failed_total",
				Help:      "Drip campaign emails that failed to send grouped by target step.",
			},
			[]string{"step"},
		),
		dripRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "drip_runs_total",
				Help:      "Drip campaign runs grouped by outcome.",
			},
			[]string{"outcome"},
		),
		workerInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "worker_inflight",
				Help:      "Current number of in-flight worker operations grouped by queue.",
			},
			[]string{"queue"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.donationsRegistered,
		m.donationsSettled,
		m.providerCallDuration,
		m.dripEmailsSentTotal,
		m.dripEmailsFailedTotal,
		m.dripRunsTotal,
		m.workerInflight,
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

func (m *Metrics) IncDonationRegistered(result string) {
	if m == nil {
		return
	}
	m.donationsRegistered.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) IncDonationSettled(status string) {
	if m == nil {
		return
	}
	m.donationsSettled.WithLabelValues(normalizeLabel(status)).Inc()
}

func (m *Metrics) ObserveProviderCall(provider string, operation string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.providerCallDuration.WithLabelValues(normalizeLabel(provider), normalizeLabel(operation)).Observe(seconds)
}

func (m *Metrics) IncDripEmailSent(step int) {
	if m == nil {
		return
	}
	m.dripEmailsSentTotal.WithLabelValues(strconv.Itoa(step)).Inc()
}

func (m *Metrics) IncDripEmailFailed(step int) {
	if m == nil {
		return
	}
	m.dripEmailsFailedTotal.WithLabelValues(strconv.Itoa(step)).Inc()
}

func (m *Metrics) IncDripRun(outcome string) {
	if m == nil {
		return
	}
	m.dripRunsTotal.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncWorkerInFlight(queue string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(queue)).Inc()
}

func (m *Metrics) DecWorkerInFlight(queue string) {
	if m == nil {
		return
	}
	m.workerInflight.WithLabelValues(normalizeLabel(queue)).Dec()
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
