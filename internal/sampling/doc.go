// Package sampling caches the latest sensor readings for the control
// engine.
//
// The sampling subsystem publishes readings over MQTT; this package
// subscribes to those topics and keeps the last value per input point.
// The engine reads the cache every tick and the cache classifies each
// reading at read time:
//
//   - ok: fresh reading, safe for autopilot decisions
//   - stale: older than the staleness horizon
//   - error: the sampling hardware reported a fault
//   - no_data: never received a reading
//
// Staleness is evaluated lazily against an injected clock, so a feed that
// goes quiet degrades without any background sweeper.
//
// Example usage:
//
//	cache := sampling.NewCache(5 * time.Minute)
//	if err := sampling.Bind(cache, mqttClient, 1); err != nil {
//	    return err
//	}
//
//	value, status := cache.CurrentValue("ai1")
//	if status == sampling.StatusOK {
//	    // act on value
//	}
package sampling
