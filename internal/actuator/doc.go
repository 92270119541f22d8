// Package actuator executes switching commands against the relay output
// bank.
//
// Commands flow through a bounded queue into a single worker goroutine,
// which owns every physical write. Timed commands arm a dose timer whose
// expiry is routed back through the same worker, so the hardware never
// sees concurrent writes:
//
//	Submit() ──▶ queue ──▶ worker ──▶ Driver.Write()
//	                        ▲  │
//	                        │  └─ OnTimed arms time.AfterFunc
//	            expired ◀───────┘  (generation-checked)
//
// A per-point generation counter guards the timed-off path: any new
// command for a point invalidates its pending dose timer, so an expiry
// that lost the race is discarded instead of cutting a fresh dose short.
//
// Two drivers are provided. ShiftRegister keeps a shadow image and latches
// the full bank through a RegisterPort on every write, matching serial
// shift register hardware. MemoryDriver backs tests and bench setups.
//
// Example usage:
//
//	registry := actuator.NewRegistry("ro", 1, 8)
//	engine := actuator.NewEngine(registry, actuator.NewMemoryDriver(8), 32)
//	engine.Start()
//	defer engine.Close()
//
//	err := engine.Submit(actuator.Command{
//	    PointID:  "ro3",
//	    Kind:     actuator.CommandOnTimed,
//	    Duration: 90 * time.Second,
//	    Source:   "scheduled",
//	})
package actuator
