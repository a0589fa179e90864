package store

import "errors"

var (
	// ErrUnavailable is returned by every operation when the store's
	// underlying connection pool is not configured. It must not be
	// silently swallowed in favor of an in-memory fallback.
	ErrUnavailable = errors.New("store: unavailable, no connection pool configured")

	// ErrNotFound is returned when an operation addresses an entity (by
	// id) that does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidStatus is returned when updateTaskStatus is called with a
	// status outside the defined TaskStatus values.
	ErrInvalidStatus = errors.New("store: invalid task status")

	// ErrEmptyField is returned when a required field is empty.
	ErrEmptyField = errors.New("field must not be empty")
)
