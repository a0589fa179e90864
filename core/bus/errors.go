package bus

import "errors"

var (
	// ErrEmptyField is returned when a required Event field is empty.
	ErrEmptyField = errors.New("field must not be empty")
)
