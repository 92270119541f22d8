package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSwitchEvent records a relay state change.
//
// Every physical relay write is mirrored here so dashboards can reconstruct
// output timelines. The write is non-blocking; data is batched and sent
// asynchronously.
//
// Parameters:
//   - pointID: Output point identifier (e.g., "ro1")
//   - on: The state the relay was driven to
//   - source: What caused the write ("scheduled", "autopilot", "timed_off",
//     "recovery", "manual")
//
// Example:
//
//	client.WriteSwitchEvent("ro1", true, "scheduled")
func (c *Client) WriteSwitchEvent(pointID string, on bool, source string) {
	if !c.IsConnected() {
		return
	}

	state := 0
	if on {
		state = 1
	}

	point := write.NewPoint(
		"switch_events",
		map[string]string{
			"point_id": pointID,
			"source":   source,
		},
		map[string]interface{}{
			"state": state,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteDoseEvent records an irrigation dose.
//
// Used for tracking dosing history per cycle and per output.
//
// Parameters:
//   - cycleID: The cycle that issued the dose
//   - pointID: The output point that was driven
//   - mode: "autopilot" or "scheduled"
//   - durationSeconds: The commanded dose length
func (c *Client) WriteDoseEvent(cycleID string, pointID string, mode string, durationSeconds int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"dose_events",
		map[string]string{
			"cycle_id": cycleID,
			"point_id": pointID,
			"mode":     mode,
		},
		map[string]interface{}{
			"duration_seconds": durationSeconds,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCycleTransition records a cycle lifecycle state change.
//
// Parameters:
//   - cycleID: Cycle identifier
//   - fromState: State before the transition
//   - toState: State after the transition
func (c *Client) WriteCycleTransition(cycleID string, fromState string, toState string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"cycle_transitions",
		map[string]string{
			"cycle_id": cycleID,
			"to_state": toState,
		},
		map[string]interface{}{
			"from_state": fromState,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
