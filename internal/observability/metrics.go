package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// prediction service and the alert engine.
type Metrics struct {
	// Prediction metrics.
	Predictions        *prometheus.CounterVec // labels: outcome={ok,invalid_input,not_ready,error}
	PredictionDuration prometheus.Histogram
	ModelLoaded        prometheus.Gauge
	ModelReloads       *prometheus.CounterVec // labels: outcome={success,error}

	// Alert engine metrics.
	EngineRunning      prometheus.Gauge
	AlertCycles        prometheus.Counter
	AlertCycleErrors   prometheus.Counter
	AlertCycleDuration prometheus.Histogram
	AlertsCreated      *prometheus.CounterVec // labels: severity={Warning,Critical}
	NotifyErrors       prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.Predictions,
		m.PredictionDuration,
		m.ModelLoaded,
		m.ModelReloads,
		m.EngineRunning,
		m.AlertCycles,
		m.AlertCycleErrors,
		m.AlertCycleDuration,
		m.AlertsCreated,
		m.NotifyErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outbreak_warning",
			Name:      "predictions_total",
			Help:      "Outbreak risk assessments by outcome.",
		}, []string{"outcome"}),
		PredictionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "outbreak_warning",
			Name:      "prediction_duration_seconds",
			Help:      "Duration of a single risk assessment.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		ModelLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "outbreak_warning",
			Name:      "model_loaded",
			Help:      "1 when a model artifact is loaded, 0 when the service is degraded.",
		}),
		ModelReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outbreak_warning",
			Name:      "model_reloads_total",
			Help:      "Model artifact reload attempts by outcome.",
		}, []string{"outcome"}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "outbreak_warning",
			Name:      "alert_engine_running",
			Help:      "1 when the alert engine loop is active, 0 when shut down.",
		}),
		AlertCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outbreak_warning",
			Name:      "alert_cycles_total",
			Help:      "Completed alert scan cycles, including failed ones.",
		}),
		AlertCycleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outbreak_warning",
			Name:      "alert_cycle_errors_total",
			Help:      "Alert scan cycles that ended in an error.",
		}),
		AlertCycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "outbreak_warning",
			Name:      "alert_cycle_duration_seconds",
			Help:      "Duration of a complete scan-dedup-persist alert cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outbreak_warning",
			Name:      "alerts_created_total",
			Help:      "Alerts persisted by severity.",
		}, []string{"severity"}),
		NotifyErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "outbreak_warning",
			Name:      "alert_notify_errors_total",
			Help:      "Failed alert notification publishes.",
		}),
	}
}
