package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the Verdant MQTT namespace.
//
// The sampling subsystem publishes sensor readings inbound; the core
// publishes actuation telemetry and system status outbound. All topics
// use the flat scheme: verdant/{category}/{point_id}
const (
	// TopicPrefix is the base for all Verdant topics.
	TopicPrefix = "verdant"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "verdant/system"
)

// Topics provides builders for Verdant MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	sampleTopic := topics.Sample("ai1")
//	// Returns: "verdant/sample/ai1"
type Topics struct{}

// =============================================================================
// Inbound Topics (published by the sampling subsystem)
// =============================================================================

// Sample returns the topic carrying analogue sensor samples for a point.
//
// Example: verdant/sample/ai1
func (Topics) Sample(pointID string) string {
	return fmt.Sprintf("%s/sample/%s", TopicPrefix, pointID)
}

// InputState returns the topic carrying binary input states for a point.
//
// Example: verdant/input/di1/state
func (Topics) InputState(pointID string) string {
	return fmt.Sprintf("%s/input/%s/state", TopicPrefix, pointID)
}

// =============================================================================
// Outbound Topics (published by the core)
// =============================================================================

// Actuation returns the telemetry topic for actuation events on a point.
// Every relay write is mirrored here for external observers.
//
// Example: verdant/actuation/ro1
func (Topics) Actuation(pointID string) string {
	return fmt.Sprintf("%s/actuation/%s", TopicPrefix, pointID)
}

// CycleState returns the topic for cycle lifecycle transitions.
//
// Example: verdant/cycle/veg-room-a/state
func (Topics) CycleState(cycleID string) string {
	return fmt.Sprintf("%s/cycle/%s/state", TopicPrefix, cycleID)
}

// SystemStatus returns the system status topic. Carries the online/offline
// payload and the Last Will message.
//
// Example: verdant/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllSamples returns a pattern matching all sensor sample topics.
//
// Pattern: verdant/sample/+
func (Topics) AllSamples() string {
	return fmt.Sprintf("%s/sample/+", TopicPrefix)
}

// AllInputStates returns a pattern matching all binary input state topics.
//
// Pattern: verdant/input/+/state
func (Topics) AllInputStates() string {
	return fmt.Sprintf("%s/input/+/state", TopicPrefix)
}

// AllActuations returns a pattern matching all actuation telemetry topics.
//
// Pattern: verdant/actuation/+
func (Topics) AllActuations() string {
	return fmt.Sprintf("%s/actuation/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Verdant topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: verdant/#
func (Topics) AllTopics() string {
	return "verdant/#"
}

// PointIDFromTopic extracts the point ID from a sample or input state topic.
// Returns an empty string if the topic does not match either scheme.
//
// Examples:
//
//	PointIDFromTopic("verdant/sample/ai1")      // "ai1"
//	PointIDFromTopic("verdant/input/di1/state") // "di1"
func PointIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	switch {
	case len(parts) == 3 && parts[0] == TopicPrefix && parts[1] == "sample":
		return parts[2]
	case len(parts) == 4 && parts[0] == TopicPrefix && parts[1] == "input" && parts[3] == "state":
		return parts[2]
	default:
		return ""
	}
}
