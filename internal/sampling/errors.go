package sampling

import "errors"

// Common errors returned by the sampling package.
var (
	// ErrNoSample indicates no reading has been received for the point.
	ErrNoSample = errors.New("sampling: no sample for point")

	// ErrBadPayload indicates a sample payload that could not be parsed.
	ErrBadPayload = errors.New("sampling: malformed sample payload")
)
