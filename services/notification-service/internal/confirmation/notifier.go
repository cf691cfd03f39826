package confirmation

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/email"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/message"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/metrics"
	"github.com/segmentio/kafka-go"
)

// BookedEvent is the payload of booking.appointment.booked.v1.
type BookedEvent struct {
	AppointmentID string  `json:"appointment_id"`
	PatientName   string  `json:"patient_name"`
	PatientEmail  string  `json:"patient_email"`
	DoctorName    string  `json:"doctor_name"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Serial        int     `json:"serial"`
	Fee           float64 `json:"fee"`
	Location      string  `json:"location"`
}

type Notifier struct {
	sender email.Sender
	logger *slog.Logger
}

func NewNotifier(sender email.Sender, logger *slog.Logger) *Notifier {
	return &Notifier{sender: sender, logger: logger}
}

// Handle drops malformed payloads (returning nil) so they are not retried forever.
// Send failures are returned to the consumer for logging.
func (n *Notifier) Handle(_ context.Context, msg kafka.Message) error {
	var evt BookedEvent
	if err := json.Unmarshal(msg.Value, &evt); err != nil {
		n.logger.Error("invalid booking payload", "err", err)
		return nil
	}
	evt.PatientEmail = strings.TrimSpace(evt.PatientEmail)
	if evt.AppointmentID == "" || evt.PatientEmail == "" {
		n.logger.Error("booking payload missing fields", "appointment_id", evt.AppointmentID)
		return nil
	}

	date := evt.Date
	if d, err := time.Parse("2006-01-02", evt.Date); err == nil {
		date = d.Format(message.DateLayout)
	}
	body, err := email.RenderBookingConfirmation(email.BookingConfirmation{
		PatientName: evt.PatientName,
		DoctorName:  evt.DoctorName,
		Date:        date,
		Time:        evt.Time,
		Serial:      evt.Serial,
		Fee:         evt.Fee,
		Location:    evt.Location,
	})
	if err != nil {
		return err
	}

	if err := n.sender.Send(evt.PatientEmail, "Appointment confirmed", body); err != nil {
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		return err
	}
	metrics.EmailsSent.WithLabelValues("sent").Inc()
	n.logger.Info("booking confirmation sent", "appointment_id", evt.AppointmentID)
	return nil
}
