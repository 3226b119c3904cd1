package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write violates a unique constraint.
	ErrConflict = errors.New("conflict")
)

const (
	pqUniqueViolation     = "23505"
	pqInvalidTextEncoding = "22P02"
	pqForeignKeyViolation = "23503"
)

// mapError translates driver errors into store sentinels.
func mapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return ErrConflict
	case pqInvalidTextEncoding, pqForeignKeyViolation:
		return ErrNotFound
	default:
		return err
	}
}
