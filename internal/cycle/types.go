package cycle

import (
	"fmt"
	"time"
)

// State is a cycle lifecycle state.
type State string

// Lifecycle states. Only StateSavedActive cycles are evaluated by the
// periodic pass. StateCompleted and StateError cycles keep their persisted
// record but are evicted from the in-memory active set.
const (
	StateDraft        State = "DRAFT"
	StateSavedDormant State = "SAVED_DORMANT"
	StateSavedActive  State = "SAVED_ACTIVE"
	StatePaused       State = "PAUSED"
	StateCompleted    State = "COMPLETED"
	StateError        State = "ERROR"
)

// validTransitions enumerates the allowed lifecycle edges. StateError is
// reachable from any state and handled separately.
var validTransitions = map[State][]State{
	StateDraft:        {StateSavedDormant},
	StateSavedDormant: {StateSavedActive, StateDraft},
	StateSavedActive:  {StatePaused, StateCompleted},
	StatePaused:       {StateSavedActive, StateCompleted},
	StateCompleted:    {},
	StateError:        {},
}

// Valid reports whether the state is a known lifecycle state.
func (s State) Valid() bool {
	_, ok := validTransitions[s]
	return ok
}

// CanTransitionTo reports whether the edge from s to target is allowed.
// StateError is reachable from every state.
func (s State) CanTransitionTo(target State) bool {
	if target == StateError {
		return true
	}
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Roles an associated point can play within a cycle.
const (
	// RolePrimaryActuator marks the single output the cycle drives.
	RolePrimaryActuator = "primary_actuator"

	// RoleAutopilotControl marks the input whose readings drive autopilot
	// dosing decisions.
	RoleAutopilotControl = "autopilot_control"

	// RoleVerification marks an input used to verify actuation, e.g. a
	// flow meter on a dosing line.
	RoleVerification = "verification"
)

// Association binds a point to a cycle in a specific role.
type Association struct {
	PointID string `json:"pointId"`
	Role    string `json:"role"`
}

// Step is one entry in a cycle's schedule sequence, 1-indexed.
type Step struct {
	Step               int    `json:"step"`
	ScheduleInstanceID string `json:"scheduleInstanceId"`
	LibraryScheduleID  string `json:"libraryScheduleId"`
	DurationDays       int    `json:"durationDays"`
}

// ActiveCycle is the central mutable entity: a planned or running
// execution of a schedule sequence against at most one output.
//
// Output being a pointer rather than a slice makes the at-most-one-output
// invariant structural; it cannot be violated by construction.
type ActiveCycle struct {
	ID             string
	Name           string
	State          State
	CycleStartDate time.Time
	CurrentStep    int
	StepStartDate  time.Time
	Sequence       []Step
	Output         *Association
	Inputs         []Association
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks structural consistency: known state, contiguous
// 1-indexed sequence with positive step durations, and role sanity on
// associations.
func (c *ActiveCycle) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCycle)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCycle)
	}
	if !c.State.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, c.State)
	}

	for i, step := range c.Sequence {
		if step.Step != i+1 {
			return fmt.Errorf("%w: sequence must be contiguous from 1, step %d at position %d",
				ErrInvalidCycle, step.Step, i)
		}
		if step.DurationDays <= 0 {
			return fmt.Errorf("%w: step %d duration must be positive days", ErrInvalidCycle, step.Step)
		}
		if step.ScheduleInstanceID == "" {
			return fmt.Errorf("%w: step %d has no schedule instance", ErrInvalidCycle, step.Step)
		}
	}

	if c.Output != nil {
		if c.Output.PointID == "" {
			return fmt.Errorf("%w: output association needs a point id", ErrInvalidCycle)
		}
		if c.Output.Role != RolePrimaryActuator {
			return fmt.Errorf("%w: output role must be %s", ErrInvalidCycle, RolePrimaryActuator)
		}
	}

	controlInputs := 0
	for _, in := range c.Inputs {
		if in.PointID == "" {
			return fmt.Errorf("%w: input association needs a point id", ErrInvalidCycle)
		}
		switch in.Role {
		case RoleAutopilotControl:
			controlInputs++
		case RoleVerification:
		default:
			return fmt.Errorf("%w: unknown input role %q", ErrInvalidCycle, in.Role)
		}
	}
	if controlInputs > 1 {
		return fmt.Errorf("%w: at most one %s input", ErrInvalidCycle, RoleAutopilotControl)
	}

	return nil
}

// ControlInput returns the autopilot control input association, or nil.
func (c *ActiveCycle) ControlInput() *Association {
	for i := range c.Inputs {
		if c.Inputs[i].Role == RoleAutopilotControl {
			return &c.Inputs[i]
		}
	}
	return nil
}

// StepByNumber returns the sequence entry for a 1-indexed step number.
func (c *ActiveCycle) StepByNumber(n int) (Step, bool) {
	if n < 1 || n > len(c.Sequence) {
		return Step{}, false
	}
	return c.Sequence[n-1], true
}

// DeepCopy returns an independent copy of the cycle.
func (c *ActiveCycle) DeepCopy() *ActiveCycle {
	copied := *c
	copied.Sequence = append([]Step(nil), c.Sequence...)
	copied.Inputs = append([]Association(nil), c.Inputs...)
	if c.Output != nil {
		out := *c.Output
		copied.Output = &out
	}
	return &copied
}

// stepBoundary returns the instant the given step ends.
func stepBoundary(stepStart time.Time, durationDays int) time.Time {
	return stepStart.Add(time.Duration(durationDays) * 24 * time.Hour)
}

// ResolveStep walks the sequence from the cycle start and returns the step
// number active at now, applying the same boundary formula as live step
// advancement. The second return is the start instant of that step. Returns
// false if now falls past the final step's boundary.
func (c *ActiveCycle) ResolveStep(now time.Time) (int, time.Time, bool) {
	if len(c.Sequence) == 0 {
		return 0, time.Time{}, false
	}

	start := c.CycleStartDate
	for _, step := range c.Sequence {
		boundary := stepBoundary(start, step.DurationDays)
		if now.Before(boundary) {
			return step.Step, start, true
		}
		start = boundary
	}
	return 0, time.Time{}, false
}
