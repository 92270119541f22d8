// Package cycle owns the runtime control core: cycle lifecycle, the
// periodic evaluation pass and reboot recovery.
//
// A cycle runs a sequence of schedule steps against at most one output.
// Lifecycle:
//
//	DRAFT ──▶ SAVED_DORMANT ──▶ SAVED_ACTIVE ◀──▶ PAUSED
//	                                 │                │
//	                                 └──▶ COMPLETED ◀─┘
//
//	(ERROR is reachable from every state)
//
// Only SAVED_ACTIVE cycles are evaluated. Each tick the Engine advances
// steps past their day boundary, picks autopilot or scheduled mode, and
// emits commands into the actuator engine:
//
//   - Autopilot wins when the output supports it, an autopilot window
//     covers the current minute and the control input reads healthy. It
//     runs every tick, rate-limited only by the window's settling time,
//     and doses when the reading crosses the threshold while the output
//     is off. An unhealthy input falls back to scheduled mode.
//   - Scheduled events are edge-triggered on the minute: duration and
//     volume events fire OnTimed doses, lights switch On/Off at their
//     configured minutes.
//
// Failures stay local to one cycle: configuration problems move it to
// ERROR and evict it; a full command queue is logged and retried next
// tick.
//
// On startup, Recover restores a known actuation state: lights recompute
// on/off from their schedule times, every other output is switched off,
// and autopilot activation memory starts empty.
package cycle
