// Package metrics defines the Prometheus metrics exported by OpsGuard.
//
// Each Metrics value owns its registry so tests can build isolated instances.
// All methods are safe to call on a nil *Metrics, which records nothing.
//
// Metric naming follows Prometheus conventions:
//   - opsguard_ prefix for all metrics
//   - _total suffix for counters
//   - _seconds suffix for duration histograms
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector registered by the service
type Metrics struct {
	registry *prometheus.Registry

	// AlertsCreated counts created alerts by kind and severity.
	AlertsCreated *prometheus.CounterVec
	// AlertTransitions counts lifecycle transitions by target status.
	AlertTransitions *prometheus.CounterVec
	// Escalations counts escalations by severity and trigger (engine or manual).
	Escalations *prometheus.CounterVec
	// EvaluationSeconds is a histogram of escalation pass duration.
	EvaluationSeconds prometheus.Histogram
	// SubscriberFailures counts failed or timed-out escalation deliveries.
	SubscriberFailures *prometheus.CounterVec
	// ProtocolActivations counts protocol activations by protocol and mode.
	ProtocolActivations *prometheus.CounterVec
	// ActiveProtocols is the number of protocols currently active.
	ActiveProtocols prometheus.Gauge
	// Modules is the number of registered modules by classification.
	Modules *prometheus.GaugeVec
	// UnresolvedAlerts is the number of unresolved alerts by severity.
	UnresolvedAlerts *prometheus.GaugeVec
}

// New creates the metric set and registers it, together with the Go runtime
// and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		AlertsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsguard_alerts_created_total",
				Help: "Total alerts created by kind and severity.",
			},
			[]string{"kind", "severity"},
		),
		AlertTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsguard_alert_transitions_total",
				Help: "Total alert lifecycle transitions by target status.",
			},
			[]string{"status"},
		),
		Escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsguard_escalations_total",
				Help: "Total alert escalations by severity and trigger.",
			},
			[]string{"severity", "trigger"},
		),
		EvaluationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "opsguard_escalation_evaluation_seconds",
				Help:    "Duration of escalation evaluation passes in seconds.",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		SubscriberFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsguard_escalation_subscriber_failures_total",
				Help: "Total failed escalation deliveries by subscriber.",
			},
			[]string{"subscriber"},
		),
		ProtocolActivations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsguard_protocol_activations_total",
				Help: "Total emergency protocol activations by protocol and mode.",
			},
			[]string{"protocol", "mode"},
		),
		ActiveProtocols: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "opsguard_active_protocols",
				Help: "Number of emergency protocols currently active.",
			},
		),
		Modules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "opsguard_modules",
				Help: "Number of registered modules by liveness classification.",
			},
			[]string{"classification"},
		),
		UnresolvedAlerts: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "opsguard_unresolved_alerts",
				Help: "Number of unresolved alerts by severity.",
			},
			[]string{"severity"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.AlertsCreated,
		m.AlertTransitions,
		m.Escalations,
		m.EvaluationSeconds,
		m.SubscriberFailures,
		m.ProtocolActivations,
		m.ActiveProtocols,
		m.Modules,
		m.UnresolvedAlerts,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordAlertCreated records one created alert.
func (m *Metrics) RecordAlertCreated(kind, severity string) {
	if m == nil {
		return
	}
	m.AlertsCreated.WithLabelValues(kind, severity).Inc()
}

// RecordTransition records one alert moving to status.
func (m *Metrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.AlertTransitions.WithLabelValues(status).Inc()
}

// RecordEscalation records one escalation.
func (m *Metrics) RecordEscalation(severity, trigger string) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(severity, trigger).Inc()
}

// RecordEvaluation records the duration of one escalation pass.
func (m *Metrics) RecordEvaluation(d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationSeconds.Observe(d.Seconds())
}

// RecordSubscriberFailure records a failed escalation delivery.
func (m *Metrics) RecordSubscriberFailure(subscriber string) {
	if m == nil {
		return
	}
	m.SubscriberFailures.WithLabelValues(subscriber).Inc()
}

// RecordProtocolActivation records an activation or drill start.
func (m *Metrics) RecordProtocolActivation(protocolID, mode string) {
	if m == nil {
		return
	}
	m.ProtocolActivations.WithLabelValues(protocolID, mode).Inc()
}

// SetActiveProtocols sets the active protocol gauge.
func (m *Metrics) SetActiveProtocols(n int) {
	if m == nil {
		return
	}
	m.ActiveProtocols.Set(float64(n))
}

// SetModules replaces the per-classification module gauges.
func (m *Metrics) SetModules(byClassification map[string]int) {
	if m == nil {
		return
	}
	m.Modules.Reset()
	for class, n := range byClassification {
		m.Modules.WithLabelValues(class).Set(float64(n))
	}
}

// SetUnresolvedAlerts replaces the per-severity unresolved alert gauges.
func (m *Metrics) SetUnresolvedAlerts(bySeverity map[string]int) {
	if m == nil {
		return
	}
	m.UnresolvedAlerts.Reset()
	for severity, n := range bySeverity {
		m.UnresolvedAlerts.WithLabelValues(severity).Set(float64(n))
	}
}
