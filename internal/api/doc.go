// Package api implements the read-only HTTP snapshot surface for Verdant Core.
//
// This package provides:
//   - REST endpoints exposing cycles, points and live actuation state
//   - Middleware stack (request ID, logging, recovery)
//   - JSON response helpers with structured errors
//
// # Architecture
//
// The API is a window onto the control core, not a control path. Handlers
// read from the cycle manager, the point registry, the actuator engine and
// the sample cache; nothing here mutates engine state. Mutation surfaces
// (cycle editing, commissioning, auth) belong to external collaborators.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
