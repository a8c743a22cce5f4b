package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pipeline metrics
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_runs_total",
			Help: "Total number of pipeline runs by terminal state",
		},
		[]string{"state"},
	)

	RunsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slipway_runs_active",
			Help: "Number of pipeline runs currently executing",
		},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slipway_queue_depth",
			Help: "Number of runs waiting in each cluster queue",
		},
		[]string{"cluster"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slipway_stage_duration_seconds",
			Help:    "Stage execution duration in seconds by stage and result",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "state"},
	)

	// Stored object metrics
	RunsStored = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "slipway_runs_stored",
			Help: "Number of persisted pipeline runs by state",
		},
		[]string{"state"},
	)

	TopologiesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slipway_topologies_total",
			Help: "Total number of stored cluster topologies",
		},
	)

	WorkloadsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "slipway_workloads_total",
			Help: "Total number of stored workload descriptors",
		},
	)

	// Validation metrics
	ValidationViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_validation_violations_total",
			Help: "Total number of descriptor validation violations by kind",
		},
		[]string{"kind"},
	)

	// Credential metrics
	CredentialRenewalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "slipway_credential_renewals_total",
			Help: "Total number of cluster credential acquisitions",
		},
	)

	// Apply metrics
	WorkloadsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_workloads_applied_total",
			Help: "Total number of workload applies by outcome",
		},
		[]string{"outcome"},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slipway_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "slipway_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(RunsActive)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(RunsStored)
	prometheus.MustRegister(TopologiesTotal)
	prometheus.MustRegister(WorkloadsTotal)
	prometheus.MustRegister(ValidationViolationsTotal)
	prometheus.MustRegister(CredentialRenewalsTotal)
	prometheus.MustRegister(WorkloadsApplied)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
