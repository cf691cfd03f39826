package storage

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/md-rashed-zaman/medserial/libs/db"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
)

type DoctorRepository struct {
	pool *db.Pool
}

func NewDoctorRepository(pool *db.Pool) *DoctorRepository {
	return &DoctorRepository{pool: pool}
}

const doctorColumns = `
	d.id::text, d.user_id::text, u.name, u.email, coalesce(u.phone, ''),
	d.specialty, d.location, d.fee::float8, d.visiting_hours, d.active`

func scanDoctor(row pgx.Row) (model.Doctor, error) {
	var d model.Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Email, &d.Phone,
		&d.Specialty, &d.Location, &d.Fee, &d.VisitingHours, &d.Active)
	return d, err
}

// Create provisions the doctor's login and roster entry in one transaction.
func (r *DoctorRepository) Create(ctx context.Context, user model.User, d model.Doctor) (model.Doctor, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Doctor{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO users (name, email, phone, password_hash, role)
		VALUES ($1, $2, nullif($3, ''), $4, $5)
		RETURNING id::text
	`, user.Name, strings.ToLower(user.Email), user.Phone, user.PasswordHash, auth.RoleDoctor).Scan(&d.UserID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return model.Doctor{}, ErrDuplicateEmail
		}
		return model.Doctor{}, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO doctors (user_id, specialty, location, fee, visiting_hours)
		VALUES ($1::uuid, $2, $3, $4, $5)
		RETURNING id::text, active
	`, d.UserID, d.Specialty, d.Location, d.Fee, d.VisitingHours).Scan(&d.ID, &d.Active)
	if err != nil {
		return model.Doctor{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Doctor{}, err
	}

	d.Name = user.Name
	d.Email = strings.ToLower(user.Email)
	d.Phone = user.Phone
	return d, nil
}

// Update rewrites the editable roster fields and the doctor's display name and phone.
func (r *DoctorRepository) Update(ctx context.Context, d model.Doctor) (model.Doctor, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Doctor{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID string
	err = tx.QueryRow(ctx, `
		UPDATE doctors
		SET specialty = $2, location = $3, fee = $4, visiting_hours = $5, updated_at = now()
		WHERE id = $1::uuid
		RETURNING user_id::text
	`, d.ID, d.Specialty, d.Location, d.Fee, d.VisitingHours).Scan(&userID)
	if err != nil {
		return model.Doctor{}, lookupErr(err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE users SET name = $2, phone = nullif($3, ''), updated_at = now() WHERE id = $1::uuid
	`, userID, d.Name, d.Phone); err != nil {
		return model.Doctor{}, err
	}

	updated, err := scanDoctor(tx.QueryRow(ctx, `SELECT `+doctorColumns+`
		FROM doctors d JOIN users u ON u.id = d.user_id
		WHERE d.id = $1::uuid`, d.ID))
	if err != nil {
		return model.Doctor{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Doctor{}, err
	}
	return updated, nil
}

// Deactivate hides the doctor from the public roster and blocks new bookings.
// Existing appointments are untouched.
func (r *DoctorRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctors SET active = false, updated_at = now() WHERE id = $1::uuid
	`, id)
	if err != nil {
		return lookupErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DoctorRepository) Get(ctx context.Context, id string) (model.Doctor, error) {
	d, err := scanDoctor(r.pool.QueryRow(ctx, `SELECT `+doctorColumns+`
		FROM doctors d JOIN users u ON u.id = d.user_id
		WHERE d.id = $1::uuid`, id))
	if err != nil {
		return model.Doctor{}, lookupErr(err)
	}
	return d, nil
}

func (r *DoctorRepository) GetByUserID(ctx context.Context, userID string) (model.Doctor, error) {
	d, err := scanDoctor(r.pool.QueryRow(ctx, `SELECT `+doctorColumns+`
		FROM doctors d JOIN users u ON u.id = d.user_id
		WHERE d.user_id = $1::uuid`, userID))
	if err != nil {
		return model.Doctor{}, lookupErr(err)
	}
	return d, nil
}

func (r *DoctorRepository) List(ctx context.Context, activeOnly bool) ([]model.Doctor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+doctorColumns+`
		FROM doctors d JOIN users u ON u.id = d.user_id
		WHERE u.deleted_at IS NULL AND ($1::bool = false OR d.active)
		ORDER BY u.name, d.id`, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
