package cycle

import "errors"

// Common errors returned by the cycle package.
var (
	ErrNotFound          = errors.New("cycle: not found")
	ErrInvalidCycle      = errors.New("cycle: invalid cycle")
	ErrInvalidTransition = errors.New("cycle: invalid state transition")
	ErrInvalidState      = errors.New("cycle: unknown state")
)
