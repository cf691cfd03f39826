package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RemindersDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medserial_reminders_dispatched_total",
			Help: "Reminder SMS dispatch attempts by result",
		},
		[]string{"result"},
	)

	RemindersSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medserial_reminders_skipped_total",
			Help: "Reminder candidates skipped for missing phone, doctor, location or time",
		},
	)

	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medserial_reminder_cycle_duration_seconds",
			Help:    "Duration of reminder cycles",
			Buckets: prometheus.DefBuckets,
		},
	)

	EmailsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medserial_booking_emails_total",
			Help: "Booking confirmation e-mails by result",
		},
		[]string{"result"},
	)
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{RemindersDispatched, RemindersSkipped, CycleDuration, EmailsSent}
}
