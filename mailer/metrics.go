package mailer

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	messagesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "csvmail_messages_sent_total",
			Help: "Messages accepted by the SMTP server",
		},
	)

	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "csvmail_batches_total",
			Help: "Batches processed, by status",
		},
		[]string{"status"},
	)

	batchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "csvmail_batch_duration_seconds",
			Help:    "Time to deliver one batch including pacing",
			Buckets: []float64{0.1, 0.5, 1, 5, 30, 120, 600},
		},
	)
)

func init() {
	prometheus.MustRegister(messagesSent)
	prometheus.MustRegister(batchesTotal)
	prometheus.MustRegister(batchDuration)
}
