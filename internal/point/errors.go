package point

import "errors"

// Domain errors for the point package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, point.ErrOutputNotFound) {
//	    // handle not found case
//	}
var (
	// ErrOutputNotFound is returned when an output point ID does not exist.
	ErrOutputNotFound = errors.New("point: output not found")

	// ErrOutputExists is returned when creating an output definition for a
	// point that already has one.
	ErrOutputExists = errors.New("point: output already exists")

	// ErrInputNotFound is returned when an input point ID does not exist.
	ErrInputNotFound = errors.New("point: input not found")

	// ErrUnknownType is returned when an assigned type has no entry in the
	// capability table.
	ErrUnknownType = errors.New("point: unknown assigned type")

	// ErrInvalidPointID is returned when a point ID is empty or malformed.
	ErrInvalidPointID = errors.New("point: invalid point id")
)
