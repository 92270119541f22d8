package actuator

import (
	"fmt"
	"sync"
)

// Driver abstracts the physical output bank. Implementations must be safe
// for concurrent use; the engine serialises writes through a single worker
// but state queries arrive from other goroutines.
type Driver interface {
	// Write sets the channel at index to the given state.
	Write(index int, on bool) error

	// State reports the last written state of the channel.
	State(index int) bool

	// Count returns the number of channels in the bank.
	Count() int
}

// RegisterPort latches a full bank image out to hardware. It is the seam
// between the shift register driver and the actual bus transfer, so tests
// and bench setups can capture latched bytes without GPIO access.
type RegisterPort interface {
	Latch(bits []byte) error
}

// ShiftRegister drives daisy-chained 8-bit serial shift registers. It keeps
// a shadow image of every channel and pushes the whole image on each write,
// since the hardware has no per-channel addressing.
type ShiftRegister struct {
	mu     sync.Mutex
	shadow []byte
	count  int
	port   RegisterPort
}

// NewShiftRegister creates a driver for count channels. The shadow image is
// all-off until the first write; callers wanting a known hardware state
// should write every channel on startup.
func NewShiftRegister(count int, port RegisterPort) *ShiftRegister {
	bytes := (count + 7) / 8
	return &ShiftRegister{
		shadow: make([]byte, bytes),
		count:  count,
		port:   port,
	}
}

// Write updates one channel in the shadow image and latches the full image.
func (s *ShiftRegister) Write(index int, on bool) error {
	if index < 0 || index >= s.count {
		return fmt.Errorf("%w: %d", ErrChannelRange, index)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byteIdx := index / 8
	bit := byte(1) << (index % 8)
	if on {
		s.shadow[byteIdx] |= bit
	} else {
		s.shadow[byteIdx] &^= bit
	}

	// Latch a copy so the port cannot observe later mutations
	image := make([]byte, len(s.shadow))
	copy(image, s.shadow)
	return s.port.Latch(image)
}

// State reports the shadow state of the channel. Out-of-range indexes
// report off.
func (s *ShiftRegister) State(index int) bool {
	if index < 0 || index >= s.count {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shadow[index/8]&(1<<(index%8)) != 0
}

// Count returns the number of channels.
func (s *ShiftRegister) Count() int {
	return s.count
}

// MemoryDriver is an in-memory Driver for tests and hardware-free bench
// setups. It records every write in order.
type MemoryDriver struct {
	mu     sync.Mutex
	states []bool
	writes []MemoryWrite
}

// MemoryWrite records a single Write call.
type MemoryWrite struct {
	Index int
	On    bool
}

// NewMemoryDriver creates a memory driver with count channels, all off.
func NewMemoryDriver(count int) *MemoryDriver {
	return &MemoryDriver{states: make([]bool, count)}
}

// Write records the state change.
func (m *MemoryDriver) Write(index int, on bool) error {
	if index < 0 || index >= len(m.states) {
		return fmt.Errorf("%w: %d", ErrChannelRange, index)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[index] = on
	m.writes = append(m.writes, MemoryWrite{Index: index, On: on})
	return nil
}

// State reports the last written state.
func (m *MemoryDriver) State(index int) bool {
	if index < 0 || index >= len(m.states) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[index]
}

// Count returns the number of channels.
func (m *MemoryDriver) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

// Writes returns a copy of the recorded write history.
func (m *MemoryDriver) Writes() []MemoryWrite {
	m.mu.Lock()
	defer m.mu.Unlock()

	writes := make([]MemoryWrite, len(m.writes))
	copy(writes, m.writes)
	return writes
}
