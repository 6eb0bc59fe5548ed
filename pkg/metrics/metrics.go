package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Healer metrics
	ScanCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_scan_cycles_total",
			Help: "Total number of healer scan cycles",
		},
	)

	ScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warden_scan_duration_seconds",
			Help:    "Healer scan cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	PodsChecked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_pods_checked_total",
			Help: "Total number of pods inspected by the healer",
		},
	)

	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_actions_total",
			Help: "Total number of remediation actions by kind and result",
		},
		[]string{"action", "result"},
	)

	CircuitOpens = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_circuit_opens_total",
			Help: "Total number of circuit-break activations",
		},
	)

	PendingWindows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warden_pending_windows",
			Help: "Number of open pending-verification windows",
		},
	)

	FailingDeployments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "warden_failing_deployments",
			Help: "Number of deployments with an open circuit",
		},
	)

	// Diagnosis metrics
	SuggestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_suggestions_total",
			Help: "Total number of diagnosis suggestions by rule and severity",
		},
		[]string{"rule", "severity"},
	)

	// Auto-ops metrics
	AutoScaleTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_autoscale_total",
			Help: "Total number of auto-ops scale decisions by result",
		},
		[]string{"result"},
	)

	// Alerting metrics
	AlertsPushed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warden_alerts_pushed_total",
			Help: "Total number of alerts pushed by result",
		},
		[]string{"result"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ScanCyclesTotal)
	prometheus.MustRegister(ScanDuration)
	prometheus.MustRegister(PodsChecked)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(CircuitOpens)
	prometheus.MustRegister(PendingWindows)
	prometheus.MustRegister(FailingDeployments)
	prometheus.MustRegister(SuggestionsTotal)
	prometheus.MustRegister(AutoScaleTotal)
	prometheus.MustRegister(AlertsPushed)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
