package point

import (
	"time"
)

// Class groups assigned types by their scheduled-actuation behaviour.
type Class string

const (
	// ClassValve covers outputs driven by timed doses (valves, pumps).
	ClassValve Class = "valve"

	// ClassLight covers outputs driven by daily on/off times.
	ClassLight Class = "light"

	// ClassOther covers outputs that receive no scheduled actuation.
	ClassOther Class = "other"
)

// TypeCapabilities describes the runtime behaviour of an assigned type.
type TypeCapabilities struct {
	// DisplayName is a human-readable label for UIs.
	DisplayName string

	// Class selects the scheduled-actuation behaviour.
	Class Class

	// SupportsVolume allows volume-based events on this type. Volume is
	// converted to a duration using the output's flow rate.
	SupportsVolume bool

	// SupportsAutopilotInput allows sensor-driven autopilot control.
	SupportsAutopilotInput bool

	// SupportsVerificationInput allows pairing a feedback input that
	// confirms the output actually switched.
	SupportsVerificationInput bool

	// ResumeStateOnReboot recomputes the output state after a restart
	// instead of forcing it off. Only light-class types set this; an
	// interrupted dose must never resume.
	ResumeStateOnReboot bool
}

// builtinTypes is the capability table for the assigned types the engine
// understands. Types absent from this table are rejected at save time.
var builtinTypes = map[string]TypeCapabilities{
	"irrigation_valve": {
		DisplayName:               "Irrigation Valve",
		Class:                     ClassValve,
		SupportsVolume:            true,
		SupportsAutopilotInput:    true,
		SupportsVerificationInput: true,
	},
	"pump": {
		DisplayName:               "Pump",
		Class:                     ClassValve,
		SupportsVolume:            true,
		SupportsAutopilotInput:    true,
		SupportsVerificationInput: true,
	},
	"dosing_pump": {
		DisplayName:    "Dosing Pump",
		Class:          ClassValve,
		SupportsVolume: true,
	},
	"light": {
		DisplayName:         "Light",
		Class:               ClassLight,
		ResumeStateOnReboot: true,
	},
	"generic_switch": {
		DisplayName: "Generic Switch",
		Class:       ClassOther,
	},
}

// Capabilities returns the capability flags for an assigned type.
// Returns ErrUnknownType if the type is not in the built-in table.
func Capabilities(assignedType string) (TypeCapabilities, error) {
	caps, ok := builtinTypes[assignedType]
	if !ok {
		return TypeCapabilities{}, ErrUnknownType
	}
	return caps, nil
}

// KnownTypes returns the assigned type IDs in the capability table.
func KnownTypes() []string {
	types := make([]string, 0, len(builtinTypes))
	for id := range builtinTypes {
		types = append(types, id)
	}
	return types
}

// OutputDefinition assigns a logical type and configuration to a relay
// output point.
type OutputDefinition struct {
	// PointID is the relay channel identifier (e.g., "ro1").
	PointID string `json:"pointId"`

	// AssignedType selects an entry in the capability table.
	AssignedType string `json:"assignedType"`

	// ConfigValues holds type-specific settings as free-form key/value
	// pairs. Well-known keys have typed accessors below.
	ConfigValues map[string]any `json:"configValues,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FlowRateLPM returns the configured flow rate in litres per minute.
// The second return value is false if the key is absent or not positive.
func (d *OutputDefinition) FlowRateLPM() (float64, bool) {
	rate, ok := numericConfigValue(d.ConfigValues, "flow_rate_lpm")
	if !ok || rate <= 0 {
		return 0, false
	}
	return rate, true
}

// Capabilities returns the capability flags for this output's assigned type.
func (d *OutputDefinition) Capabilities() (TypeCapabilities, error) {
	return Capabilities(d.AssignedType)
}

// Validate checks the definition for structural errors.
func (d *OutputDefinition) Validate() error {
	if d.PointID == "" {
		return ErrInvalidPointID
	}
	if _, err := Capabilities(d.AssignedType); err != nil {
		return err
	}
	return nil
}

// DeepCopy returns a copy safe to mutate without affecting the original.
func (d *OutputDefinition) DeepCopy() *OutputDefinition {
	if d == nil {
		return nil
	}
	copied := *d
	if d.ConfigValues != nil {
		copied.ConfigValues = make(map[string]any, len(d.ConfigValues))
		for k, v := range d.ConfigValues {
			copied.ConfigValues[k] = v
		}
	}
	return &copied
}

// numericConfigValue extracts a float64 from a config value map.
// JSON decoding produces float64; YAML and manual construction may
// produce int, so both are accepted.
func numericConfigValue(values map[string]any, key string) (float64, bool) {
	if values == nil {
		return 0, false
	}
	switch v := values[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// InputConfig carries display metadata for a sensor input point.
// The sampling subsystem owns acquisition; the core stores how readings
// should be scaled and presented.
type InputConfig struct {
	// PointID is the sensor channel identifier (e.g., "ai1").
	PointID string `json:"pointId"`

	// Name is a human-readable label.
	Name string `json:"name"`

	// Unit is the display unit (e.g., "%", "EC", "pH").
	Unit string `json:"unit"`

	// ScaleMin and ScaleMax define the expected reading range.
	ScaleMin float64 `json:"scaleMin"`
	ScaleMax float64 `json:"scaleMax"`

	// DisplayPrecision is the number of decimal places to show.
	DisplayPrecision int `json:"displayPrecision"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the input config for structural errors.
func (c *InputConfig) Validate() error {
	if c.PointID == "" {
		return ErrInvalidPointID
	}
	return nil
}
