package coach

import "errors"

// ErrInvalidRequest marks turn input rejected before any model call.
var ErrInvalidRequest = errors.New("coach: invalid request")
