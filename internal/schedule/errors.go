package schedule

import "errors"

// Common errors returned by the schedule package.
var (
	ErrTemplateNotFound = errors.New("schedule: template not found")
	ErrInstanceNotFound = errors.New("schedule: instance not found")
	ErrTemplateLocked   = errors.New("schedule: template is locked by an instance")
	ErrInvalidSchedule  = errors.New("schedule: invalid schedule")
	ErrInvalidEvent     = errors.New("schedule: invalid event")
	ErrEventOverlap     = errors.New("schedule: event overlaps an existing event")
	ErrEventLimit       = errors.New("schedule: combined duration/volume event limit exceeded")
)
