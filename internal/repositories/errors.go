package repositories

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates the write would violate a uniqueness constraint
	// or was made against a stale version of the record.
	ErrConflict = errors.New("record conflict")
)
