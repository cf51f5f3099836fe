package storage

import "errors"

// Sentinel errors shared by every SwapRecordStore implementation.
var (
	// ErrDuplicateKey is returned when an insert collides with a swap
	// record already on file. Records are append-only; a collision means
	// the swap was ingested before, never that it should be updated.
	ErrDuplicateKey = errors.New("duplicate key: swap records are append-only")

	// ErrInvalidInput is returned when a record fails validation before
	// it reaches the backing store.
	ErrInvalidInput = errors.New("invalid input")
)
