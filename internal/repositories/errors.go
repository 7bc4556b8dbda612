package repositories

import "errors"

// Store-independent errors. Every implementation translates its driver
// errors into these.
var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("duplicate record")
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStaleState is returned when a conditional write finds the record
	// in a different state than the caller read.
	ErrStaleState = errors.New("record changed concurrently")
)
