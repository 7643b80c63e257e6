package devicechan

import "github.com/prometheus/client_golang/prometheus"

var (
	connectedGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rollcall",
			Subsystem: "device",
			Name:      "connected",
			Help:      "1 when the attendance device is connected.",
		})

	messageCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rollcall",
			Subsystem: "device",
			Name:      "messages_total",
			Help:      "Counter of device frames by direction and event.",
		}, []string{"direction", "event"})
)

func init() {
	prometheus.MustRegister(connectedGauge)
	prometheus.MustRegister(messageCounter)
}
