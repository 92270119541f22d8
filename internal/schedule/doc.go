// Package schedule manages the schedule library: editable templates and
// the immutable instances bound to cycle steps.
//
// A template describes one day of actuation: lights-on/off times,
// duration and volume dose events, and autopilot windows in which
// sensor-driven dosing supersedes the fixed events. All times of day are
// minutes since midnight (0-1439).
//
// Validation enforces the original library rules: autopilot windows never
// intersect, duration events never intersect, volume events never share a
// start minute or land inside a duration event's run, and a schedule
// carries at most 100 combined dose events.
//
// Binding a template to a cycle step copies it into an Instance. Volume
// events on the instance carry a duration pre-computed against the target
// output's flow rate; the copy locks the template so running cycles never
// see edits. The Janitor sweeps instances left orphaned by interrupted
// cycle deletion on a cron spec.
package schedule
