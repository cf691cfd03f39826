package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medserial_usersync_events_total",
			Help: "Auth provider webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	Forwards = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medserial_usersync_forwards_total",
			Help: "Downstream forwards of mirrored users by result",
		},
		[]string{"result"},
	)
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{WebhookEvents, Forwards}
}
