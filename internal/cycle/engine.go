package cycle

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/verdant-core/internal/actuator"
	"github.com/nerrad567/verdant-core/internal/point"
	"github.com/nerrad567/verdant-core/internal/sampling"
	"github.com/nerrad567/verdant-core/internal/schedule"
)

// Actuation is the slice of the actuator engine the cycle engine needs.
type Actuation interface {
	Submit(cmd actuator.Command) error
	IsOn(pointID string) (bool, error)
}

// Sampler supplies current sensor readings.
type Sampler interface {
	CurrentValue(pointID string) (float64, sampling.Status)
}

// InstanceLoader loads schedule instances by ID.
type InstanceLoader interface {
	GetInstance(ctx context.Context, id string) (*schedule.Instance, error)
}

// OutputLoader loads output definitions by point ID.
type OutputLoader interface {
	GetOutput(ctx context.Context, pointID string) (*point.OutputDefinition, error)
}

// DoseObserver is notified after every dose command the engine submits.
// Mode is "scheduled" or "autopilot".
type DoseObserver func(cycleID, pointID, mode string, durationSeconds int)

// Engine runs the periodic evaluation pass over all active cycles.
//
// Each tick the engine advances steps past their boundary, selects
// autopilot or scheduled mode per cycle, and emits actuation commands.
// Scheduled events are edge-triggered: they fire exactly once, on the tick
// where the clock enters their start minute, however many ticks land
// inside that minute. Autopilot runs every tick.
//
// All failures are local to one cycle. Configuration problems move that
// cycle to StateError; transient problems (full command queue) are logged
// and retried next tick; nothing a single cycle does can block the others.
type Engine struct {
	manager   *Manager
	actuation Actuation
	sampler   Sampler
	schedules InstanceLoader
	outputs   OutputLoader
	logger    Logger

	tick time.Duration
	now  func() time.Time

	// lastMinute is the minute-of-day seen on the previous tick, -1
	// before the first. The first tick always counts as a minute edge.
	lastMinute int

	observerMu sync.RWMutex
	observers  []DoseObserver

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewEngine creates a cycle engine. Start must be called to begin ticking.
func NewEngine(manager *Manager, actuation Actuation, sampler Sampler, schedules InstanceLoader, outputs OutputLoader, tick time.Duration) *Engine {
	return &Engine{
		manager:    manager,
		actuation:  actuation,
		sampler:    sampler,
		schedules:  schedules,
		outputs:    outputs,
		logger:     noopLogger{},
		tick:       tick,
		now:        time.Now,
		lastMinute: -1,
		done:       make(chan struct{}),
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// SetNowFunc overrides the clock. Intended for tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	e.now = now
}

// AddDoseObserver registers a dose observer. Must be called before Start.
func (e *Engine) AddDoseObserver(obs DoseObserver) {
	e.observerMu.Lock()
	e.observers = append(e.observers, obs)
	e.observerMu.Unlock()
}

// Start launches the tick loop.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(e.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.Evaluate(ctx)
			case <-ctx.Done():
				return
			case <-e.done:
				return
			}
		}
	}()
}

// Stop halts the tick loop and waits for an in-flight pass to finish.
func (e *Engine) Stop() {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	e.wg.Wait()
}

// Evaluate runs one evaluation pass. Normally driven by the tick loop;
// exposed for tests and for an immediate pass after recovery.
func (e *Engine) Evaluate(ctx context.Context) {
	now := e.now()
	minute := now.Hour()*60 + now.Minute()
	minuteChanged := minute != e.lastMinute
	e.lastMinute = minute

	for _, c := range e.manager.EvaluationSet() {
		e.evaluateCycle(ctx, c, now, minute, minuteChanged)
	}
}

func (e *Engine) evaluateCycle(ctx context.Context, c *ActiveCycle, now time.Time, minute int, minuteChanged bool) {
	// 1. Step advancement
	step, ok := c.StepByNumber(c.CurrentStep)
	if !ok {
		e.markError(ctx, c.ID, "current step out of range")
		return
	}
	if !now.Before(stepBoundary(c.StepStartDate, step.DurationDays)) {
		if c.CurrentStep >= len(c.Sequence) {
			if err := e.manager.Complete(ctx, c.ID); err != nil {
				e.logger.Error("failed to complete cycle", "cycle_id", c.ID, "error", err)
			}
			return
		}
		advanced, err := e.manager.AdvanceStep(ctx, c.ID, now)
		if err != nil {
			e.logger.Error("failed to advance step", "cycle_id", c.ID, "error", err)
			return
		}
		c = advanced
		step, ok = c.StepByNumber(c.CurrentStep)
		if !ok {
			e.markError(ctx, c.ID, "advanced past sequence end")
			return
		}
	}

	// 2. Load the instance for the current step
	inst, err := e.schedules.GetInstance(ctx, step.ScheduleInstanceID)
	if err != nil {
		e.markError(ctx, c.ID, "schedule instance unavailable: "+err.Error())
		return
	}

	// 3. Without an output there is nothing to actuate
	if c.Output == nil {
		return
	}

	def, err := e.outputs.GetOutput(ctx, c.Output.PointID)
	if err != nil {
		e.markError(ctx, c.ID, "output definition unavailable: "+err.Error())
		return
	}
	caps, err := def.Capabilities()
	if err != nil {
		e.markError(ctx, c.ID, "output has unknown assigned type: "+err.Error())
		return
	}

	// 4. Mode selection: autopilot needs a capable output, an active
	// window and a healthy control input. Anything else falls back to
	// scheduled mode for this tick.
	window := inst.ActiveWindow(minute)
	control := c.ControlInput()
	autopilot := false
	if caps.SupportsAutopilotInput && window != nil && control != nil {
		if _, status := e.sampler.CurrentValue(control.PointID); status == sampling.StatusOK {
			autopilot = true
		}
	}

	if autopilot {
		e.runAutopilot(c, window, control, def, now)
		return
	}
	if minuteChanged {
		e.runScheduled(c, inst, caps, minute)
	}
}

// runAutopilot evaluates sensor-driven dosing. It runs every tick; the
// settling interval is the only rate limit and there is no hysteresis
// around the threshold. Autopilot only triggers doses, never explicit
// offs.
func (e *Engine) runAutopilot(c *ActiveCycle, window *schedule.AutopilotWindow, control *Association, def *point.OutputDefinition, now time.Time) {
	if last, ok := e.manager.LastActivation(c.ID); ok {
		if now.Before(last.Add(window.SettlingDuration())) {
			return
		}
	}

	value, status := e.sampler.CurrentValue(control.PointID)
	if status != sampling.StatusOK {
		// Health can change between mode selection and here
		return
	}
	if value > window.ControlThreshold {
		return
	}

	on, err := e.actuation.IsOn(c.Output.PointID)
	if err != nil {
		e.logger.Warn("cannot read output state", "cycle_id", c.ID, "point_id", c.Output.PointID, "error", err)
		return
	}
	if on {
		return
	}

	seconds := doseSeconds(window, def)
	if seconds <= 0 {
		e.logger.Warn("autopilot dose has no resolvable duration",
			"cycle_id", c.ID, "point_id", c.Output.PointID)
		return
	}

	if !e.submit(actuator.Command{
		PointID:  c.Output.PointID,
		Kind:     actuator.CommandOnTimed,
		Duration: time.Duration(seconds) * time.Second,
		Source:   "autopilot",
	}, c.ID) {
		return
	}

	e.manager.RecordActivation(c.ID, now)
	e.notifyDose(c.ID, c.Output.PointID, "autopilot", seconds)
}

// runScheduled fires the events whose start minute the clock just entered.
func (e *Engine) runScheduled(c *ActiveCycle, inst *schedule.Instance, caps point.TypeCapabilities, minute int) {
	switch caps.Class {
	case point.ClassValve:
		for _, ev := range inst.DurationEvents {
			if ev.StartTime != minute {
				continue
			}
			if e.submit(actuator.Command{
				PointID:  c.Output.PointID,
				Kind:     actuator.CommandOnTimed,
				Duration: time.Duration(ev.DurationSeconds) * time.Second,
				Source:   "scheduled",
			}, c.ID) {
				e.notifyDose(c.ID, c.Output.PointID, "scheduled", ev.DurationSeconds)
			}
		}
		for _, ev := range inst.VolumeEvents {
			if ev.StartTime != minute {
				continue
			}
			if !caps.SupportsVolume || ev.CalculatedDurationSeconds <= 0 {
				e.logger.Warn("skipping volume event with no resolvable duration",
					"cycle_id", c.ID, "point_id", c.Output.PointID, "start_minute", ev.StartTime)
				continue
			}
			if e.submit(actuator.Command{
				PointID:  c.Output.PointID,
				Kind:     actuator.CommandOnTimed,
				Duration: time.Duration(ev.CalculatedDurationSeconds) * time.Second,
				Source:   "scheduled",
			}, c.ID) {
				e.notifyDose(c.ID, c.Output.PointID, "scheduled", ev.CalculatedDurationSeconds)
			}
		}

	case point.ClassLight:
		if minute == inst.LightsOnTime {
			e.submit(actuator.Command{PointID: c.Output.PointID, Kind: actuator.CommandOn, Source: "scheduled"}, c.ID)
		}
		if minute == inst.LightsOffTime {
			e.submit(actuator.Command{PointID: c.Output.PointID, Kind: actuator.CommandOff, Source: "scheduled"}, c.ID)
		}

	default:
		// Other classes receive no scheduled actuation
	}
}

// submit queues a command, treating a full queue as transient and an
// unknown point as intentional tolerance for out-of-scope resources.
func (e *Engine) submit(cmd actuator.Command, cycleID string) bool {
	err := e.actuation.Submit(cmd)
	switch {
	case err == nil:
		return true
	case errors.Is(err, actuator.ErrQueueFull):
		e.logger.Warn("command queue full, retrying next tick",
			"cycle_id", cycleID, "point_id", cmd.PointID)
	case errors.Is(err, actuator.ErrUnknownPoint):
		e.logger.Debug("command for unmapped point dropped",
			"cycle_id", cycleID, "point_id", cmd.PointID)
	default:
		e.logger.Error("command submission failed",
			"cycle_id", cycleID, "point_id", cmd.PointID, "error", err)
	}
	return false
}

func (e *Engine) markError(ctx context.Context, cycleID, reason string) {
	if err := e.manager.MarkError(ctx, cycleID, reason); err != nil {
		e.logger.Error("failed to mark cycle errored", "cycle_id", cycleID, "error", err)
	}
}

func (e *Engine) notifyDose(cycleID, pointID, mode string, seconds int) {
	e.observerMu.RLock()
	observers := e.observers
	e.observerMu.RUnlock()
	for _, obs := range observers {
		obs(cycleID, pointID, mode, seconds)
	}
}

// doseSeconds resolves a window's dose to seconds: an explicit duration
// wins, otherwise the volume is converted against the output's flow rate.
func doseSeconds(window *schedule.AutopilotWindow, def *point.OutputDefinition) int {
	if window.DoseDurationSeconds > 0 {
		return window.DoseDurationSeconds
	}
	if window.DoseVolume <= 0 {
		return 0
	}
	flowLPM, ok := def.FlowRateLPM()
	if !ok {
		return 0
	}
	return int(math.Round(window.DoseVolume / flowLPM * 60))
}
