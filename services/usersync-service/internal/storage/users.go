package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/md-rashed-zaman/medserial/libs/auth"
	"github.com/md-rashed-zaman/medserial/libs/db"
	"github.com/md-rashed-zaman/medserial/libs/outbox"
)

var ErrEmailTaken = errors.New("email belongs to another account")

// User is the mirrored record; it is also the body forwarded downstream.
type User struct {
	ID       string `json:"id"`
	AuthUID  string `json:"auth_uid"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Role     string `json:"role"`
	Deleted  bool   `json:"deleted"`
}

type syncedEvent struct {
	Action string `json:"action"`
	User   User   `json:"user"`
}

type UserRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewUserRepository(pool *db.Pool, outboxRepo *outbox.Repository) *UserRepository {
	return &UserRepository{pool: pool, outbox: outboxRepo}
}

// Upsert mirrors a provider user keyed by auth_uid. A password account with the same
// e-mail and no provider link is adopted instead of duplicated. Patients always end
// up with a patients row.
func (r *UserRepository) Upsert(ctx context.Context, action string, u User) (User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE users SET auth_uid = $1, updated_at = now()
		WHERE lower(email) = $2 AND auth_uid IS NULL AND deleted_at IS NULL
		  AND NOT EXISTS (SELECT 1 FROM users WHERE auth_uid = $1)
	`, u.AuthUID, u.Email); err != nil {
		return User{}, err
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO users (auth_uid, name, email, phone, image_url, role)
		VALUES ($1, $2, $3, nullif($4, ''), nullif($5, ''), $6)
		ON CONFLICT (auth_uid) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			image_url = EXCLUDED.image_url,
			deleted_at = NULL,
			updated_at = now()
		RETURNING id::text, role
	`, u.AuthUID, u.Name, u.Email, u.Phone, u.ImageURL, auth.RolePatient).Scan(&u.ID, &u.Role)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}

	if u.Role == auth.RolePatient {
		if _, err := tx.Exec(ctx, `
			INSERT INTO patients (user_id) VALUES ($1::uuid)
			ON CONFLICT (user_id) DO NOTHING
		`, u.ID); err != nil {
			return User{}, err
		}
	}

	if err := r.writeSynced(ctx, tx, action, u); err != nil {
		return User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return u, nil
}

// SoftDelete marks the mirrored user deleted. changed is false when there was nothing
// to delete, which makes repeated deliveries harmless.
func (r *UserRepository) SoftDelete(ctx context.Context, action, authUID string) (u User, changed bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return User{}, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		UPDATE users SET deleted_at = now(), updated_at = now()
		WHERE auth_uid = $1 AND deleted_at IS NULL
		RETURNING id::text, auth_uid, name, email, coalesce(phone, ''), coalesce(image_url, ''), role
	`, authUID).Scan(&u.ID, &u.AuthUID, &u.Name, &u.Email, &u.Phone, &u.ImageURL, &u.Role)
	if err != nil {
		if db.IsNoRows(err) {
			return User{}, false, nil
		}
		return User{}, false, err
	}
	u.Deleted = true

	if err := r.writeSynced(ctx, tx, action, u); err != nil {
		return User{}, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

func (r *UserRepository) writeSynced(ctx context.Context, tx outbox.Execer, action string, u User) error {
	evt, err := outbox.NewEvent("user", u.ID, outbox.EventUserSynced, syncedEvent{Action: action, User: u})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, evt)
}
