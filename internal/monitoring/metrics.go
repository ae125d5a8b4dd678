// Package monitoring exposes the Prometheus collectors of the results server.
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors so that tests can register them on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	Classifications  *prometheus.CounterVec
	ReportLoads      *prometheus.CounterVec
	EmailDeliveries  *prometheus.CounterVec
	EmailInFlight    prometheus.Gauge
	TabGateProceeded *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// NewMetrics creates the collectors and registers them on reg.
// Passing nil uses a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		Classifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "results_classifications_total",
				Help: "Scores classified, by assessment and resulting level",
			},
			[]string{"assessment", "level"},
		),
		ReportLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "results_report_loads_total",
				Help: "Report loads, by assessment and outcome",
			},
			[]string{"assessment", "outcome"},
		),
		EmailDeliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "results_email_deliveries_total",
				Help: "Email delivery attempts, by outcome",
			},
			[]string{"outcome"},
		),
		EmailInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "results_email_deliveries_in_flight",
				Help: "Email deliveries dispatched but not yet resolved",
			},
		),
		TabGateProceeded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "results_tab_gate_proceeded_total",
				Help: "Proceed actions, by assessment and whether the gate was open",
			},
			[]string{"assessment", "allowed"},
		),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RequestCounter,
		m.RequestDuration,
		m.Classifications,
		m.ReportLoads,
		m.EmailDeliveries,
		m.EmailInFlight,
		m.TabGateProceeded,
	)
	return m
}

// ObserveClassification counts one classified score.
func (m *Metrics) ObserveClassification(assessment, level string) {
	if m == nil {
		return
	}
	if assessment == "" {
		assessment = "adhoc"
	}
	m.Classifications.WithLabelValues(assessment, level).Inc()
}

// ObserveReportLoad counts one report load outcome ("ok", "not_found", "malformed", "error").
func (m *Metrics) ObserveReportLoad(assessment, outcome string) {
	if m == nil {
		return
	}
	m.ReportLoads.WithLabelValues(assessment, outcome).Inc()
}

// DeliveryStarted marks an email delivery as in flight.
func (m *Metrics) DeliveryStarted() {
	if m == nil {
		return
	}
	m.EmailInFlight.Inc()
}

// DeliveryFinished records the outcome of an email delivery.
func (m *Metrics) DeliveryFinished(success bool) {
	if m == nil {
		return
	}
	m.EmailInFlight.Dec()
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.EmailDeliveries.WithLabelValues(outcome).Inc()
}

// ObserveProceed counts a proceed attempt against the tab gate.
func (m *Metrics) ObserveProceed(assessment string, allowed bool) {
	if m == nil {
		return
	}
	m.TabGateProceeded.WithLabelValues(assessment, strconv.FormatBool(allowed)).Inc()
}

// MetricsMiddleware records request count and latency per route.
func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if m == nil {
			return
		}

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
		).Inc()

		m.RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(duration)
	}
}

// PrometheusHandler serves the registry in the Prometheus exposition format.
func (m *Metrics) PrometheusHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
