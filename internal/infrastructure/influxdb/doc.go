// Package influxdb provides InfluxDB connectivity for Verdant Core.
//
// It wraps the official influxdb-client-go v2 library with Verdant-specific
// patterns for connection management, history writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series history storage for:
//   - Switch events (every relay on/off with its source)
//   - Dose events (autopilot and scheduled irrigation doses)
//   - Cycle lifecycle transitions
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "verdant",
//	    Bucket: "history",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Record a dose
//	client.WriteDoseEvent("veg-room-a", "ro1", "autopilot", 90)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead during busy schedule minutes.
package influxdb
