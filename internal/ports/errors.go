package ports

import "errors"

// ErrNotFound is returned when a key or series does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing entry.
var ErrConflict = errors.New("conflict")
