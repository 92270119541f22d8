package actuator

import "errors"

// Common errors returned by the actuator package.
var (
	// ErrUnknownPoint indicates a command referenced a point ID with no
	// mapped output channel.
	ErrUnknownPoint = errors.New("actuator: unknown output point")

	// ErrQueueFull indicates the command queue is at capacity. Callers
	// should treat this as transient and retry on a later tick.
	ErrQueueFull = errors.New("actuator: command queue full")

	// ErrClosed indicates the engine has been shut down.
	ErrClosed = errors.New("actuator: engine closed")

	// ErrInvalidDuration indicates a timed command with a non-positive
	// duration.
	ErrInvalidDuration = errors.New("actuator: duration must be positive")

	// ErrChannelRange indicates a driver write outside the channel bank.
	ErrChannelRange = errors.New("actuator: channel index out of range")
)
