package storage

import "errors"

// Storage errors. Services translate these into the domain taxonomy.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStatusMismatch is returned by compare-and-set status updates when the
	// stored status is not the expected one.
	ErrStatusMismatch = errors.New("status mismatch")
)
