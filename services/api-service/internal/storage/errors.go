package storage

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/medserial/libs/db"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEmail = errors.New("email already registered")
	ErrDoctorInactive = errors.New("doctor is not accepting appointments")
)

// lookupErr maps "no such row" and malformed uuids to ErrNotFound.
func lookupErr(err error) error {
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "22P02" {
		return ErrNotFound
	}
	return err
}
