package coordinator

import "github.com/prometheus/client_golang/prometheus"

var workflowDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "rollcall",
		Subsystem: "workflow",
		Name:      "duration_seconds",
		Help:      "Bucketed histogram of device workflow durations.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 13),
	}, []string{"workflow", "result"})

func init() {
	prometheus.MustRegister(workflowDuration)
}
