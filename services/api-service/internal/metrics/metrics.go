package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	AppointmentsBooked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medserial_appointments_booked_total",
			Help: "Appointments booked",
		},
	)

	AppointmentsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "medserial_appointments_cancelled_total",
			Help: "Appointments cancelled",
		},
	)

	SerialChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medserial_serial_changes_total",
			Help: "Live serial changes by action",
		},
		[]string{"action"},
	)

	SerialStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "medserial_serial_streams",
			Help: "Open live serial WebSocket streams",
		},
	)

	PaymentsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medserial_payments_total",
			Help: "Stripe checkout completions by outcome",
		},
		[]string{"outcome"},
	)
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{AppointmentsBooked, AppointmentsCancelled, SerialChanges, SerialStreams, PaymentsCompleted}
}
