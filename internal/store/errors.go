package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a create would violate a uniqueness
// invariant (local email, or provider id per provider).
var ErrConflict = errors.New("conflict")
