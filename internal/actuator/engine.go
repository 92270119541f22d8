package actuator

import (
	"fmt"
	"sync"
	"time"
)

// CommandKind identifies the requested switching action.
type CommandKind int

const (
	// CommandOn switches the output on and cancels any pending timed-off.
	CommandOn CommandKind = iota

	// CommandOff switches the output off and cancels any pending timed-off.
	CommandOff

	// CommandOnTimed switches the output on and schedules an automatic
	// off after Duration.
	CommandOnTimed
)

// String returns the command kind name.
func (k CommandKind) String() string {
	switch k {
	case CommandOn:
		return "on"
	case CommandOff:
		return "off"
	case CommandOnTimed:
		return "on_timed"
	default:
		return "unknown"
	}
}

// Command is a switching request for one output point.
type Command struct {
	PointID  string
	Kind     CommandKind
	Duration time.Duration // Only used by CommandOnTimed

	// Source tags where the command originated (scheduled, autopilot,
	// recovery, manual). Carried through to switch observers.
	Source string
}

// SwitchObserver is notified after every physical state change. Observers
// run on the worker goroutine and must not block.
type SwitchObserver func(pointID string, on bool, source string)

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// timedOff is posted by an expired dose timer. The generation lets the
// worker discard expiries that raced with a newer command for the point.
type timedOff struct {
	pointID    string
	generation uint64
}

// Engine executes switching commands against the output driver.
//
// All physical writes happen on a single worker goroutine, so command
// ordering is the submission ordering and the driver never sees concurrent
// writes for overlapping commands. Timed-off expiries are routed back
// through the worker on a separate channel that the worker drains with
// priority, keeping dose durations honest even when the queue is busy.
//
// Every command for a point bumps its generation counter. A pending
// timed-off only fires if its captured generation still matches, which
// closes the race where a dose timer expires just as a fresh On command
// for the same point is being processed.
type Engine struct {
	registry *Registry
	driver   Driver
	logger   Logger

	queue   chan Command
	expired chan timedOff
	done    chan struct{}
	wg      sync.WaitGroup

	timersMu    sync.Mutex
	timers      map[string]*time.Timer
	generations map[string]uint64

	observerMu sync.RWMutex
	observers  []SwitchObserver

	closeOnce sync.Once
}

// NewEngine creates a command engine with a bounded queue. Start must be
// called before submitting commands.
func NewEngine(registry *Registry, driver Driver, queueSize int) *Engine {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Engine{
		registry:    registry,
		driver:      driver,
		logger:      noopLogger{},
		queue:       make(chan Command, queueSize),
		expired:     make(chan timedOff, queueSize),
		done:        make(chan struct{}),
		timers:      make(map[string]*time.Timer),
		generations: make(map[string]uint64),
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// AddObserver registers a switch observer. Must be called before Start.
func (e *Engine) AddObserver(obs SwitchObserver) {
	e.observerMu.Lock()
	e.observers = append(e.observers, obs)
	e.observerMu.Unlock()
}

// Start launches the worker goroutine.
func (e *Engine) Start() {
	e.wg.Add(1)
	go e.worker()
}

// Close stops the worker and cancels all pending timed-offs. Queued
// commands that have not been processed are dropped. Outputs keep their
// last written state; reboot recovery owns restoring a known state.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	e.wg.Wait()

	e.timersMu.Lock()
	for pointID, timer := range e.timers {
		timer.Stop()
		delete(e.timers, pointID)
	}
	e.timersMu.Unlock()
}

// Submit queues a command without blocking.
// Returns ErrQueueFull when the queue is at capacity, ErrClosed after
// shutdown, ErrUnknownPoint for unmapped point IDs and ErrInvalidDuration
// for timed commands without a positive duration.
func (e *Engine) Submit(cmd Command) error {
	if _, ok := e.registry.Lookup(cmd.PointID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPoint, cmd.PointID)
	}
	if cmd.Kind == CommandOnTimed && cmd.Duration <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidDuration, cmd.Duration)
	}

	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	select {
	case e.queue <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// IsOn reports the current state of an output point.
func (e *Engine) IsOn(pointID string) (bool, error) {
	idx, ok := e.registry.Lookup(pointID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownPoint, pointID)
	}
	return e.driver.State(idx), nil
}

// PointIDs returns all controllable point IDs in channel order.
func (e *Engine) PointIDs() []string {
	return e.registry.PointIDs()
}

func (e *Engine) worker() {
	defer e.wg.Done()

	for {
		// Drain expiries first so a busy queue cannot stretch doses
		select {
		case exp := <-e.expired:
			e.handleExpired(exp)
			continue
		default:
		}

		select {
		case exp := <-e.expired:
			e.handleExpired(exp)
		case cmd := <-e.queue:
			e.handleCommand(cmd)
		case <-e.done:
			return
		}
	}
}

func (e *Engine) handleCommand(cmd Command) {
	idx, ok := e.registry.Lookup(cmd.PointID)
	if !ok {
		// Submit validates, but guard against registry drift
		e.logger.Error("command for unmapped point dropped", "point_id", cmd.PointID)
		return
	}

	switch cmd.Kind {
	case CommandOn:
		e.cancelPending(cmd.PointID)
		e.write(idx, cmd.PointID, true, cmd.Source)

	case CommandOff:
		e.cancelPending(cmd.PointID)
		e.write(idx, cmd.PointID, false, cmd.Source)

	case CommandOnTimed:
		gen := e.cancelPending(cmd.PointID)
		e.write(idx, cmd.PointID, true, cmd.Source)
		e.armTimer(cmd.PointID, gen, cmd.Duration)

	default:
		e.logger.Error("unknown command kind dropped", "point_id", cmd.PointID, "kind", int(cmd.Kind))
	}
}

func (e *Engine) handleExpired(exp timedOff) {
	e.timersMu.Lock()
	current := e.generations[exp.pointID]
	if current != exp.generation {
		// A newer command superseded this dose
		e.timersMu.Unlock()
		e.logger.Debug("stale timed-off discarded", "point_id", exp.pointID)
		return
	}
	delete(e.timers, exp.pointID)
	e.timersMu.Unlock()

	idx, ok := e.registry.Lookup(exp.pointID)
	if !ok {
		return
	}
	e.write(idx, exp.pointID, false, "timed_off")
}

// cancelPending invalidates any pending timed-off for the point and returns
// the new generation. Safe to call when nothing is pending.
func (e *Engine) cancelPending(pointID string) uint64 {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()

	e.generations[pointID]++
	if timer, ok := e.timers[pointID]; ok {
		timer.Stop()
		delete(e.timers, pointID)
	}
	return e.generations[pointID]
}

func (e *Engine) armTimer(pointID string, generation uint64, duration time.Duration) {
	e.timersMu.Lock()
	defer e.timersMu.Unlock()

	e.timers[pointID] = time.AfterFunc(duration, func() {
		select {
		case e.expired <- timedOff{pointID: pointID, generation: generation}:
		case <-e.done:
		}
	})
}

func (e *Engine) write(idx int, pointID string, on bool, source string) {
	if err := e.driver.Write(idx, on); err != nil {
		e.logger.Error("output write failed", "point_id", pointID, "on", on, "error", err)
		return
	}

	e.logger.Info("output switched", "point_id", pointID, "on", on, "source", source)

	e.observerMu.RLock()
	observers := e.observers
	e.observerMu.RUnlock()
	for _, obs := range observers {
		obs(pointID, on, source)
	}
}
