package repository

import "errors"

var (
	// ErrNotFound is returned when no row matches the lookup
	ErrNotFound = errors.New("repository: record not found")
	// ErrConflict is returned when a conditional update found its precondition false
	ErrConflict = errors.New("repository: precondition failed")
	// ErrDuplicate is returned when an insert violates a unique constraint
	ErrDuplicate = errors.New("repository: duplicate entry")
)

const uniqueViolation = "23505"
