package cli

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	execDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "csvmail_executor_duration_seconds",
			Help:    "Time spent in external programs such as the pager",
			Buckets: []float64{0.1, 1, 5, 15, 60, 300},
		},
		[]string{"command", "status"},
	)

	execTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvmail_executor_runs_total",
			Help: "External program runs",
		},
		[]string{"command", "status"},
	)
)

func init() {
	prometheus.MustRegister(execDuration)
	prometheus.MustRegister(execTotal)
}

func recordExecution(command string, status string, duration float64) {
	execDuration.WithLabelValues(command, status).Observe(duration)
	execTotal.WithLabelValues(command, status).Inc()
}
