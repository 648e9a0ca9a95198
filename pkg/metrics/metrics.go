package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	RegistryNodeCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fedmesh_registry_nodes_total",
			Help: "Number of nodes in the most recently published landscape snapshot",
		},
	)

	RegistryDataModelCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fedmesh_registry_data_models_total",
			Help: "Number of compatible data models in the most recently published landscape snapshot",
		},
	)

	RegistryScanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedmesh_registry_scan_duration_seconds",
			Help:    "Time taken for one landscape aggregator scan cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Executor (C4) metrics
	ExecutorStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedmesh_executor_step_duration_seconds",
			Help:    "Time taken to run one algorithm step",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"algorithm", "step_kind"},
	)

	ExecutorStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmesh_executor_steps_total",
			Help: "Total executor steps by terminal state",
		},
		[]string{"algorithm", "state"},
	)

	ExecutorActiveContexts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fedmesh_executor_active_contexts",
			Help: "Number of algorithm executions currently in flight",
		},
	)

	// Worker RPC (C1) metrics
	RPCCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedmesh_rpc_call_duration_seconds",
			Help:    "Worker RPC call duration by method",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	RPCCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmesh_rpc_calls_total",
			Help: "Worker RPC calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	// Cleaner (C5) metrics
	CleanupBacklogSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fedmesh_cleanup_backlog_contexts",
			Help: "Number of contexts awaiting or undergoing cleanup",
		},
	)

	CleanupAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmesh_cleanup_attempts_total",
			Help: "Cleanup RPC attempts by outcome",
		},
		[]string{"outcome"},
	)

	CleanupSweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedmesh_cleanup_sweep_duration_seconds",
			Help:    "Time taken for one cleaner sweep cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SMPC metrics
	SMPCJobDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedmesh_smpc_job_duration_seconds",
			Help:    "Time taken for an SMPC cluster job from submission to result",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	SMPCJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmesh_smpc_jobs_total",
			Help: "SMPC cluster jobs by outcome",
		},
		[]string{"outcome"},
	)

	// API (C6 facade) metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmesh_api_requests_total",
			Help: "Total number of API requests by route and status",
		},
		[]string{"route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedmesh_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	AlgorithmRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmesh_algorithm_runs_total",
			Help: "Algorithm runs accepted by the facade, by algorithm and terminal outcome",
		},
		[]string{"algorithm", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RegistryNodeCount,
		RegistryDataModelCount,
		RegistryScanDuration,
		ExecutorStepDuration,
		ExecutorStepsTotal,
		ExecutorActiveContexts,
		RPCCallDuration,
		RPCCallsTotal,
		CleanupBacklogSize,
		CleanupAttemptsTotal,
		CleanupSweepDuration,
		SMPCJobDuration,
		SMPCJobsTotal,
		APIRequestsTotal,
		APIRequestDuration,
		AlgorithmRunsTotal,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
