package detector

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the prometheus collectors exported by a detector.
type Metrics struct {
	AlertsFired    *prometheus.CounterVec
	AlertsResolved *prometheus.CounterVec
	ActiveAlerts   prometheus.Gauge
	LogErrors      prometheus.Counter
	Requests       *prometheus.CounterVec
	AuthFailures   prometheus.Counter
}

// NewMetrics creates the collectors and registers them when registry is non-nil.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		AlertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertpipe_detector_alerts_fired_total",
			Help: "Total number of alerts fired by the detector.",
		}, []string{"alert_name", "severity"}),
		AlertsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertpipe_detector_alerts_resolved_total",
			Help: "Total number of alerts resolved by the detector.",
		}, []string{"alert_name"}),
		ActiveAlerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "alertpipe_detector_active_alerts",
			Help: "Number of currently active alerts.",
		}),
		LogErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertpipe_detector_event_log_errors_total",
			Help: "Total number of alert events that could not be written.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alertpipe_detector_requests_total",
			Help: "Total number of requests recorded by the detector.",
		}, []string{"outcome"}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "alertpipe_detector_auth_failures_total",
			Help: "Total number of authentication failures recorded.",
		}),
	}

	if registry != nil {
		registry.MustRegister(
			m.AlertsFired,
			m.AlertsResolved,
			m.ActiveAlerts,
			m.LogErrors,
			m.Requests,
			m.AuthFailures,
		)
	}

	return m
}
