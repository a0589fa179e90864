package dispatch

import (
	"errors"
	"fmt"

	"github.com/infinri/neural-forge/core/store"
)

// ErrValidation marks a request validation failure, mapped to
// ERR.BAD_REQUEST regardless of the wrapped detail.
var ErrValidation = errors.New("dispatch: invalid request")

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// errToCode maps an error returned by a toolFunc onto the stable envelope
// taxonomy.
func errToCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrValidation):
		return ErrBadRequest
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrUnavailable):
		return ErrDBUnavailable
	default:
		return ErrUnavailable
	}
}
