package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/medserial/libs/db"
	"github.com/md-rashed-zaman/medserial/libs/outbox"
	"github.com/md-rashed-zaman/medserial/services/notification-service/internal/model"
)

type AppointmentRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewAppointmentRepository(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentRepository {
	return &AppointmentRepository{pool: pool, outbox: outboxRepo}
}

// DueAppointments returns booked, unnotified appointments dated within [start, end].
// Patient and doctor joins are outer joins so rows with missing users still surface
// and are skipped by the caller.
func (r *AppointmentRepository) DueAppointments(ctx context.Context, start, end time.Time) ([]model.DueAppointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.id::text, a.date, a.time, a.fee::float8, coalesce(a.location, ''),
		       coalesce(pu.phone, ''), coalesce(du.name, '')
		FROM appointments a
		LEFT JOIN patients p ON p.id = a.patient_id
		LEFT JOIN users pu ON pu.id = p.user_id
		LEFT JOIN doctors d ON d.id = a.doctor_id
		LEFT JOIN users du ON du.id = d.user_id
		WHERE a.date BETWEEN $1::date AND $2::date
		  AND a.notified = false
		  AND a.status = 'booked'
		ORDER BY a.date, a.doctor_id, a.serial
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DueAppointment
	for rows.Next() {
		var a model.DueAppointment
		if err := rows.Scan(&a.ID, &a.Date, &a.Time, &a.Fee, &a.Location, &a.PatientPhone, &a.DoctorName); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkNotified flips notified for the given ids and records one reminder-sent event per
// updated row. Rows already notified by a concurrent cycle are left alone and not counted.
func (r *AppointmentRepository) MarkNotified(ctx context.Context, ids []string) (*model.UpdateResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		UPDATE appointments
		SET notified = true, notified_at = now()
		WHERE id = ANY($1::uuid[]) AND notified = false
		RETURNING id::text
	`, ids)
	if err != nil {
		return nil, err
	}
	var updated []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		updated = append(updated, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sentAt := time.Now().UTC().Format(time.RFC3339)
	for _, id := range updated {
		evt, err := outbox.NewEvent("appointment", id, outbox.EventReminderSent, map[string]any{
			"appointment_id": id,
			"channel":        "sms",
			"sent_at":        sentAt,
		})
		if err != nil {
			return nil, err
		}
		if err := r.outbox.Insert(ctx, tx, evt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &model.UpdateResult{Count: int64(len(updated))}, nil
}
