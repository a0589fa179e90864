package bus

import "fmt"

// panicError wraps a recovered handler panic as a regular error.
type panicError struct {
	handler string
	value   any
}

func (e panicError) Error() string {
	return fmt.Sprintf("handler %s panicked: %v", e.handler, e.value)
}
