package orchestrator

import "errors"

// ErrForcedForTest is returned by the conversation handler when a payload
// carries a truthy "force_error" field, exercising the bus's handler-error
// counter from integration tests.
var ErrForcedForTest = errors.New("orchestrator: forced test error")
