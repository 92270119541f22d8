// Package point manages I/O point configuration for Verdant Core.
//
// An output point is a relay channel with an assigned logical type
// (irrigation valve, pump, light...). The assigned type determines the
// point's runtime behaviour through a built-in capability table: whether
// it accepts volume-based events, whether autopilot may drive it, and how
// it recovers after a reboot. An input point carries display metadata for
// a sensor channel sampled by the external sampling subsystem.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────┐
//	│              Registry (registry.go)              │
//	│  Thread-safe cache over the repository           │
//	│  ┌──────────────┐     ┌───────────────────┐      │
//	│  │  Repository  │────▶│ SQLite            │      │
//	│  │(repository.go)│    │ output_definitions │     │
//	│  └──────────────┘     │ input_configs      │     │
//	│                       └───────────────────┘      │
//	│  Capabilities(assignedType) → TypeCapabilities   │
//	└──────────────────────────────────────────────────┘
//
// # Key Types
//
//   - OutputDefinition: Point ID + assigned type + free-form config values
//   - TypeCapabilities: Behaviour flags per assigned type
//   - InputConfig: Display metadata for a sensor point
//   - Registry: Thread-safe in-memory cache wrapping Repository
//
// # Thread Safety
//
// Registry is safe for concurrent use from multiple goroutines.
package point
