// Package mqtt provides MQTT client connectivity for Verdant Core.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Verdant uses MQTT to connect the core to the sensor sampling subsystem
// and to external observers. Samples flow inbound on verdant/sample/+;
// actuation telemetry and cycle state flow outbound.
//
//	Sampling Subsystem → MQTT Broker → Verdant Core → MQTT Broker → Observers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all sensor samples
//	err = client.Subscribe(mqtt.Topics{}.AllSamples(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish actuation telemetry
//	topic := mqtt.Topics{}.Actuation("ro1")
//	client.Publish(topic, []byte(`{"on":true}`), 1, false)
package mqtt
