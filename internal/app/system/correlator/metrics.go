package correlator

import "github.com/prometheus/client_golang/prometheus"

var (
	pendingGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rollcall",
			Subsystem: "correlator",
			Name:      "pending_operations",
			Help:      "Device operations waiting for an outcome.",
		})

	outcomeCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "correlator",
			Name:      "outcomes_total",
			Help:      "Counter of resolved device operations.",
		}, []string{"kind", "status"})

	strayCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "correlator",
			Name:      "stray_deliveries_total",
			Help:      "Counter of device messages that matched no pending operation.",
		}, []string{"event"})

	rejectedCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "correlator",
			Name:      "rejected_total",
			Help:      "Counter of operations refused because too many were pending.",
		})
)

func init() {
	prometheus.MustRegister(pendingGauge)
	prometheus.MustRegister(outcomeCounter)
	prometheus.MustRegister(strayCounter)
	prometheus.MustRegister(rejectedCounter)
}
