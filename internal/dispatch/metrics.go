package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	submissionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatchd_submissions_accepted_total",
			Help: "Total number of accepted submissions.",
		},
	)

	duplicateHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatchd_duplicate_hits_total",
			Help: "Total number of duplicate submissions by detecting tier.",
		},
		[]string{"source"},
	)

	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatchd_executions_total",
			Help: "Total number of finished executions by terminal status.",
		},
		[]string{"status"},
	)

	executionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatchd_executions_in_flight",
			Help: "Number of executions currently running.",
		},
	)

	executionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatchd_execution_duration_seconds",
			Help:    "Execution duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal)
	prometheus.MustRegister(duplicateHits)
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(executionsInFlight)
	prometheus.MustRegister(executionDuration)
}
