package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/medserial/libs/db"
	"github.com/md-rashed-zaman/medserial/libs/outbox"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
)

type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

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

// Book assigns the next serial for (doctor, date) and inserts the appointment. The doctor
// row is locked for the duration so concurrent bookings serialize on it.
func (r *AppointmentRepository) Book(ctx context.Context, patientID, doctorID string, date time.Time) (model.Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt := model.Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Date:      date,
		Status:    model.StatusBooked,
	}
	var active bool
	err = tx.QueryRow(ctx, `
		SELECT d.user_id::text, u.name, d.fee::float8, d.location, d.visiting_hours, d.active
		FROM doctors d
		JOIN users u ON u.id = d.user_id
		WHERE d.id = $1::uuid
		FOR UPDATE OF d
	`, doctorID).Scan(&appt.DoctorUserID, &appt.DoctorName, &appt.Fee, &appt.Location, &appt.Time, &active)
	if err != nil {
		return model.Appointment{}, lookupErr(err)
	}
	if !active {
		return model.Appointment{}, ErrDoctorInactive
	}

	var patientEmail string
	err = tx.QueryRow(ctx, `
		SELECT u.id::text, u.name, u.email
		FROM patients p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1::uuid
	`, patientID).Scan(&appt.PatientUserID, &appt.PatientName, &patientEmail)
	if err != nil {
		return model.Appointment{}, lookupErr(err)
	}

	// Cancelled rows keep their serial so numbers handed out are never reused.
	err = tx.QueryRow(ctx, `
		SELECT coalesce(max(serial), 0) + 1
		FROM appointments
		WHERE doctor_id = $1::uuid AND date = $2::date
	`, doctorID, date).Scan(&appt.Serial)
	if err != nil {
		return model.Appointment{}, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (patient_id, doctor_id, date, time, fee, location, serial, status)
		VALUES ($1::uuid, $2::uuid, $3::date, $4, $5, $6, $7, $8)
		RETURNING id::text, created_at
	`, patientID, doctorID, date, appt.Time, appt.Fee, appt.Location, appt.Serial, appt.Status).Scan(&appt.ID, &appt.CreatedAt)
	if err != nil {
		return model.Appointment{}, err
	}

	evt, err := outbox.NewEvent("appointment", appt.ID, outbox.EventAppointmentBooked, BookedEvent{
		AppointmentID: appt.ID,
		PatientName:   appt.PatientName,
		PatientEmail:  patientEmail,
		DoctorName:    appt.DoctorName,
		Date:          date.Format(model.DateLayout),
		Time:          appt.Time,
		Serial:        appt.Serial,
		Fee:           appt.Fee,
		Location:      appt.Location,
	})
	if err != nil {
		return model.Appointment{}, err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, err
	}
	return appt, nil
}

const appointmentColumns = `
	a.id::text, a.patient_id::text, pu.id::text, pu.name,
	a.doctor_id::text, du.id::text, du.name,
	a.date, a.time, a.fee::float8, a.location, a.serial, a.status,
	a.notified, a.paid, a.cancelled_at, a.created_at`

const appointmentJoins = `
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN users pu ON pu.id = p.user_id
	JOIN doctors d ON d.id = a.doctor_id
	JOIN users du ON du.id = d.user_id`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.PatientUserID, &a.PatientName,
		&a.DoctorID, &a.DoctorUserID, &a.DoctorName,
		&a.Date, &a.Time, &a.Fee, &a.Location, &a.Serial, &a.Status,
		&a.Notified, &a.Paid, &a.CancelledAt, &a.CreatedAt)
	return a, err
}

func (r *AppointmentRepository) Get(ctx context.Context, id string) (model.Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+appointmentJoins+`
		WHERE a.id = $1::uuid`, id))
	if err != nil {
		return model.Appointment{}, lookupErr(err)
	}
	return a, nil
}

// List returns newest appointments first. Empty filter fields match everything.
func (r *AppointmentRepository) List(ctx context.Context, f model.ListFilter) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+appointmentJoins+`
		WHERE ($1 = '' OR a.patient_id = nullif($1, '')::uuid)
		  AND ($2 = '' OR a.doctor_id = nullif($2, '')::uuid)
		ORDER BY a.date DESC, a.serial ASC
		LIMIT $3`, f.PatientID, f.DoctorID, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Cancel marks a booked appointment cancelled and records the event. Cancelling an
// already-cancelled appointment returns it unchanged with changed=false.
func (r *AppointmentRepository) Cancel(ctx context.Context, id, reason string) (appt model.Appointment, changed bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Appointment{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err = scanAppointment(tx.QueryRow(ctx, `SELECT `+appointmentColumns+appointmentJoins+`
		WHERE a.id = $1::uuid
		FOR UPDATE OF a`, id))
	if err != nil {
		return model.Appointment{}, false, lookupErr(err)
	}
	if appt.Status == model.StatusCancelled {
		return appt, false, nil
	}

	var cancelledAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled', cancelled_at = now(), cancel_reason = nullif($2, '')
		WHERE id = $1::uuid
		RETURNING cancelled_at
	`, id, reason).Scan(&cancelledAt)
	if err != nil {
		return model.Appointment{}, false, err
	}
	appt.Status = model.StatusCancelled
	appt.CancelledAt = &cancelledAt

	evt, err := outbox.NewEvent("appointment", appt.ID, outbox.EventAppointmentCancelled, map[string]any{
		"appointment_id": appt.ID,
		"doctor_id":      appt.DoctorID,
		"date":           appt.Date.Format(model.DateLayout),
		"serial":         appt.Serial,
		"reason":         reason,
		"cancelled_at":   cancelledAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return model.Appointment{}, false, err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return model.Appointment{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Appointment{}, false, err
	}
	return appt, true, nil
}

func (r *AppointmentRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments SET stripe_session_id = $2 WHERE id = $1::uuid
	`, id, sessionID)
	if err != nil {
		return lookupErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPaid is idempotent: a replayed webhook for a paid appointment reports changed=false
// and writes no second event.
func (r *AppointmentRepository) MarkPaid(ctx context.Context, id, sessionID string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var alreadyPaid bool
	err = tx.QueryRow(ctx, `
		SELECT paid FROM appointments WHERE id = $1::uuid FOR UPDATE
	`, id).Scan(&alreadyPaid)
	if err != nil {
		return false, lookupErr(err)
	}
	if alreadyPaid {
		return false, nil
	}

	var paidAt time.Time
	err = tx.QueryRow(ctx, `
		UPDATE appointments
		SET paid = true, paid_at = now(), stripe_session_id = coalesce(nullif($2, ''), stripe_session_id)
		WHERE id = $1::uuid
		RETURNING paid_at
	`, id, sessionID).Scan(&paidAt)
	if err != nil {
		return false, err
	}

	evt, err := outbox.NewEvent("appointment", id, outbox.EventAppointmentPaid, map[string]any{
		"appointment_id":    id,
		"stripe_session_id": sessionID,
		"paid_at":           paidAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return false, err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}
