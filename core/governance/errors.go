package governance

import "errors"

// ErrRuleLoaderRequired is returned by activation when the Engine was built
// with a nil rule loader.
var ErrRuleLoaderRequired = errors.New("governance: rule loader required")

// ErrStoreRequired is returned by activation when the Engine was built with
// a nil store.
var ErrStoreRequired = errors.New("governance: store required")
