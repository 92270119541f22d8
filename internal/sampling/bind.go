package sampling

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/verdant-core/internal/infrastructure/mqtt"
)

// Subscriber is the slice of the MQTT client the binding needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// samplePayload is the wire format on verdant/sample/{point_id}.
//
//	{"value": 42.7, "timestamp": "2026-08-01T10:30:00Z"}
//
// The timestamp is optional; missing timestamps are stamped on receipt.
type samplePayload struct {
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// statePayload is the wire format on verdant/input/{point_id}/state.
//
//	{"status": "ok"} or {"status": "error"}
type statePayload struct {
	Status string `json:"status"`
}

// Bind subscribes the cache to the sample and input state topics. Malformed
// payloads are logged and dropped; they never fault the subscription.
func Bind(cache *Cache, sub Subscriber, qos byte) error {
	topics := mqtt.Topics{}

	if err := sub.Subscribe(topics.AllSamples(), qos, sampleHandler(cache)); err != nil {
		return fmt.Errorf("subscribing to samples: %w", err)
	}
	if err := sub.Subscribe(topics.AllInputStates(), qos, stateHandler(cache)); err != nil {
		return fmt.Errorf("subscribing to input states: %w", err)
	}
	return nil
}

func sampleHandler(cache *Cache) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		pointID := mqtt.PointIDFromTopic(topic)
		if pointID == "" {
			return fmt.Errorf("%w: unrecognised topic %s", ErrBadPayload, topic)
		}

		var msg samplePayload
		if err := json.Unmarshal(payload, &msg); err != nil {
			cache.logger.Warn("dropping malformed sample", "topic", topic, "error", err)
			return fmt.Errorf("%w: %w", ErrBadPayload, err)
		}

		var ts time.Time
		if msg.Timestamp != "" {
			parsed, err := time.Parse(time.RFC3339, msg.Timestamp)
			if err != nil {
				cache.logger.Warn("dropping sample with bad timestamp", "topic", topic, "timestamp", msg.Timestamp)
				return fmt.Errorf("%w: %w", ErrBadPayload, err)
			}
			ts = parsed
		}

		cache.Record(pointID, msg.Value, ts)
		return nil
	}
}

func stateHandler(cache *Cache) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		pointID := mqtt.PointIDFromTopic(topic)
		if pointID == "" {
			return fmt.Errorf("%w: unrecognised topic %s", ErrBadPayload, topic)
		}

		var msg statePayload
		if err := json.Unmarshal(payload, &msg); err != nil {
			cache.logger.Warn("dropping malformed input state", "topic", topic, "error", err)
			return fmt.Errorf("%w: %w", ErrBadPayload, err)
		}

		switch msg.Status {
		case "ok":
			cache.RecordFault(pointID, false)
		case "error":
			cache.RecordFault(pointID, true)
		default:
			cache.logger.Warn("dropping input state with unknown status", "topic", topic, "status", msg.Status)
			return fmt.Errorf("%w: unknown status %q", ErrBadPayload, msg.Status)
		}
		return nil
	}
}
