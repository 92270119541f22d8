package schedule

import (
	"fmt"
	"sort"
	"time"
)

// Times of day throughout this package are minutes since midnight, 0-1439.
// A lights time of -1 means unset.
const (
	minuteMin = 0
	minuteMax = 1439

	// maxDoseEvents caps the combined duration plus volume event count
	// per schedule.
	maxDoseEvents = 100

	// TimeUnset marks an absent lights-on or lights-off time.
	TimeUnset = -1
)

// AutopilotWindow is a time range in which sensor-driven dosing supersedes
// scheduled events. The dose is sized either directly in seconds or as a
// volume converted against the output's flow rate at execution time.
type AutopilotWindow struct {
	StartTime           int     `json:"startTime"`
	EndTime             int     `json:"endTime"`
	ControlThreshold    float64 `json:"controlThreshold"`
	DoseVolume          float64 `json:"doseVolume,omitempty"`
	DoseDurationSeconds int     `json:"doseDurationSeconds,omitempty"`
	SettlingTimeMinutes int     `json:"settlingTimeMinutes"`
}

// Contains reports whether the window covers the given minute of day.
// The range is half-open: [StartTime, EndTime).
func (w AutopilotWindow) Contains(minute int) bool {
	return minute >= w.StartTime && minute < w.EndTime
}

// SettlingDuration returns the settling time as a Duration.
func (w AutopilotWindow) SettlingDuration() time.Duration {
	return time.Duration(w.SettlingTimeMinutes) * time.Minute
}

// Validate checks bounds, ordering and dosing parameters.
func (w AutopilotWindow) Validate() error {
	if w.StartTime < minuteMin || w.StartTime > minuteMax || w.EndTime < minuteMin || w.EndTime > minuteMax {
		return fmt.Errorf("%w: window times must be 0-1439", ErrInvalidEvent)
	}
	if w.StartTime >= w.EndTime {
		return fmt.Errorf("%w: window start must precede end", ErrInvalidEvent)
	}
	if w.DoseVolume <= 0 && w.DoseDurationSeconds <= 0 {
		return fmt.Errorf("%w: window needs a dose volume or dose duration", ErrInvalidEvent)
	}
	if w.SettlingTimeMinutes < 0 {
		return fmt.Errorf("%w: settling time cannot be negative", ErrInvalidEvent)
	}
	return nil
}

// DurationEvent switches the output on for a fixed number of seconds at
// StartTime.
type DurationEvent struct {
	StartTime       int `json:"startTime"`
	DurationSeconds int `json:"durationSeconds"`
}

// endMinute returns the first minute after the event's run, rounding the
// duration up to whole minutes for overlap purposes.
func (e DurationEvent) endMinute() int {
	return e.StartTime + (e.DurationSeconds+59)/60
}

// Validate checks bounds and duration.
func (e DurationEvent) Validate() error {
	if e.StartTime < minuteMin || e.StartTime > minuteMax {
		return fmt.Errorf("%w: event start must be 0-1439", ErrInvalidEvent)
	}
	if e.DurationSeconds <= 0 {
		return fmt.Errorf("%w: event duration must be positive", ErrInvalidEvent)
	}
	return nil
}

// VolumeEvent doses a fixed volume at StartTime. On templates only the
// volume is stored; instances carry CalculatedDurationSeconds, converted
// against the target output's flow rate at instance creation. A value of
// zero marks the conversion as failed and the event is skipped at runtime.
type VolumeEvent struct {
	StartTime                 int     `json:"startTime"`
	DoseVolume                float64 `json:"doseVolume"`
	CalculatedDurationSeconds int     `json:"calculatedDurationSeconds,omitempty"`
}

// Validate checks bounds and volume.
func (e VolumeEvent) Validate() error {
	if e.StartTime < minuteMin || e.StartTime > minuteMax {
		return fmt.Errorf("%w: event start must be 0-1439", ErrInvalidEvent)
	}
	if e.DoseVolume <= 0 {
		return fmt.Errorf("%w: dose volume must be positive", ErrInvalidEvent)
	}
	return nil
}

// Schedule is the shared shape of templates and instances. Templates are
// edited through the Store; instances are immutable copies bound to one
// cycle step.
type Schedule struct {
	UID           string `json:"uid"`
	Name          string `json:"name"`
	LightsOnTime  int    `json:"lightsOnTime"`
	LightsOffTime int    `json:"lightsOffTime"`

	AutopilotWindows []AutopilotWindow `json:"autopilotWindows"`
	DurationEvents   []DurationEvent   `json:"durationEvents"`
	VolumeEvents     []VolumeEvent     `json:"volumeEvents"`
}

// Instance is an immutable per-cycle-step copy of a template.
type Instance struct {
	ID          string
	TemplateUID string
	Schedule
	CreatedAt time.Time
}

// ActiveWindow returns the autopilot window containing the given minute,
// or nil if none does. Windows never overlap, so at most one matches.
func (s *Schedule) ActiveWindow(minute int) *AutopilotWindow {
	for i := range s.AutopilotWindows {
		if s.AutopilotWindows[i].Contains(minute) {
			return &s.AutopilotWindows[i]
		}
	}
	return nil
}

// Normalize sorts all event slices by start time.
func (s *Schedule) Normalize() {
	sort.Slice(s.AutopilotWindows, func(i, j int) bool {
		return s.AutopilotWindows[i].StartTime < s.AutopilotWindows[j].StartTime
	})
	sort.Slice(s.DurationEvents, func(i, j int) bool {
		return s.DurationEvents[i].StartTime < s.DurationEvents[j].StartTime
	})
	sort.Slice(s.VolumeEvents, func(i, j int) bool {
		return s.VolumeEvents[i].StartTime < s.VolumeEvents[j].StartTime
	})
}

// Validate checks the whole schedule: per-event validity, overlap rules
// and the combined dose event cap.
//
// Overlap rules:
//   - autopilot windows must not intersect each other
//   - duration events must not intersect each other (minute granularity,
//     durations rounded up)
//   - volume events must not share a start minute with another volume or
//     duration event, nor start inside a duration event's run
func (s *Schedule) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSchedule)
	}
	if err := validateLightsTime(s.LightsOnTime); err != nil {
		return fmt.Errorf("lights on: %w", err)
	}
	if err := validateLightsTime(s.LightsOffTime); err != nil {
		return fmt.Errorf("lights off: %w", err)
	}

	if len(s.DurationEvents)+len(s.VolumeEvents) > maxDoseEvents {
		return fmt.Errorf("%w: limit is %d", ErrEventLimit, maxDoseEvents)
	}

	for i, w := range s.AutopilotWindows {
		if err := w.Validate(); err != nil {
			return err
		}
		for _, other := range s.AutopilotWindows[:i] {
			if w.StartTime < other.EndTime && other.StartTime < w.EndTime {
				return fmt.Errorf("%w: autopilot windows %d-%d and %d-%d",
					ErrEventOverlap, other.StartTime, other.EndTime, w.StartTime, w.EndTime)
			}
		}
	}

	for i, e := range s.DurationEvents {
		if err := e.Validate(); err != nil {
			return err
		}
		for _, other := range s.DurationEvents[:i] {
			if e.StartTime < other.endMinute() && other.StartTime < e.endMinute() {
				return fmt.Errorf("%w: duration events at %d and %d",
					ErrEventOverlap, other.StartTime, e.StartTime)
			}
		}
	}

	for i, e := range s.VolumeEvents {
		if err := e.Validate(); err != nil {
			return err
		}
		for _, other := range s.VolumeEvents[:i] {
			if e.StartTime == other.StartTime {
				return fmt.Errorf("%w: volume events share start %d", ErrEventOverlap, e.StartTime)
			}
		}
		for _, d := range s.DurationEvents {
			if e.StartTime >= d.StartTime && e.StartTime < d.endMinute() {
				return fmt.Errorf("%w: volume event at %d inside duration event at %d",
					ErrEventOverlap, e.StartTime, d.StartTime)
			}
		}
	}

	return nil
}

func validateLightsTime(minute int) error {
	if minute == TimeUnset {
		return nil
	}
	if minute < minuteMin || minute > minuteMax {
		return fmt.Errorf("%w: must be 0-1439 or unset", ErrInvalidSchedule)
	}
	return nil
}

// DeepCopy returns an independent copy of the schedule.
func (s *Schedule) DeepCopy() *Schedule {
	copied := *s
	copied.AutopilotWindows = append([]AutopilotWindow(nil), s.AutopilotWindows...)
	copied.DurationEvents = append([]DurationEvent(nil), s.DurationEvents...)
	copied.VolumeEvents = append([]VolumeEvent(nil), s.VolumeEvents...)
	return &copied
}
