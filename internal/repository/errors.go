package repository

import "errors"

var (
	// ErrNotFound is returned when no record matches the given identifier.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an insert collides with a unique constraint.
	ErrConflict = errors.New("record already exists")
)
