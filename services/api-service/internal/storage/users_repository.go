package storage

import (
	"context"
	"strings"

	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/md-rashed-zaman/medserial/libs/db"
	"github.com/md-rashed-zaman/medserial/services/api-service/internal/model"
)

type UserRepository struct {
	pool *db.Pool
}

func NewUserRepository(pool *db.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreatePatient inserts the user and its patients row together.
func (r *UserRepository) CreatePatient(ctx context.Context, user model.User) (model.User, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	user.Role = auth.RolePatient
	err = tx.QueryRow(ctx, `
		INSERT INTO users (name, email, phone, password_hash, role)
		VALUES ($1, $2, nullif($3, ''), $4, $5)
		RETURNING id::text, created_at
	`, user.Name, strings.ToLower(user.Email), user.Phone, user.PasswordHash, user.Role).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return model.User{}, ErrDuplicateEmail
		}
		return model.User{}, err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO patients (user_id) VALUES ($1)`, user.ID); err != nil {
		return model.User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, `lower(email) = lower($1)`, email)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (model.User, error) {
	return r.getOne(ctx, `id = $1::uuid`, id)
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg string) (model.User, error) {
	var u model.User
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, coalesce(auth_uid, ''), name, email, coalesce(phone, ''), coalesce(image_url, ''),
		       coalesce(password_hash, ''), role, created_at
		FROM users
		WHERE deleted_at IS NULL AND `+where, arg).Scan(
		&u.ID, &u.AuthUID, &u.Name, &u.Email, &u.Phone, &u.ImageURL, &u.PasswordHash, &u.Role, &u.CreatedAt,
	)
	if err != nil {
		return model.User{}, lookupErr(err)
	}
	return u, nil
}

// PatientIDForUser maps an authenticated user to its patients row.
func (r *UserRepository) PatientIDForUser(ctx context.Context, userID string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT p.id::text
		FROM patients p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1::uuid AND u.deleted_at IS NULL
	`, userID).Scan(&id)
	if err != nil {
		return "", lookupErr(err)
	}
	return id, nil
}
