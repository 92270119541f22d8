package cycle

import (
	"context"
	"time"

	"github.com/nerrad567/verdant-core/internal/actuator"
)

// Recover restores a known actuation state after a restart. Run once,
// after Manager.LoadAll and before the tick loop starts.
//
// Activation memory never survives a restart, so it is cleared first. For
// every active cycle the current step is resolved retroactively from the
// cycle start; cycles past their final step complete, unresolvable ones
// error. Lights are the only outputs that resume state, recomputed from
// the schedule's lights times against the current minute. Every other
// output is explicitly switched off.
func (e *Engine) Recover(ctx context.Context) {
	e.manager.ClearAllActivations()

	now := e.now()
	minute := now.Hour()*60 + now.Minute()

	for _, c := range e.manager.EvaluationSet() {
		e.recoverCycle(ctx, c, now, minute)
	}
}

func (e *Engine) recoverCycle(ctx context.Context, c *ActiveCycle, now time.Time, minute int) {
	stepNum, stepStart, ok := c.ResolveStep(now)
	if !ok {
		if len(c.Sequence) > 0 && !now.Before(c.CycleStartDate) {
			// Ran out its sequence while powered down
			if err := e.manager.Complete(ctx, c.ID); err != nil {
				e.logger.Error("failed to complete cycle on recovery", "cycle_id", c.ID, "error", err)
			}
			e.recoverOutputOff(c)
			return
		}
		e.markError(ctx, c.ID, "cannot resolve current step on recovery")
		return
	}

	if stepNum != c.CurrentStep || !stepStart.Equal(c.StepStartDate) {
		c.CurrentStep = stepNum
		c.StepStartDate = stepStart
		if err := e.manager.Save(ctx, c); err != nil {
			e.logger.Error("failed to persist recovered step", "cycle_id", c.ID, "error", err)
		}
	}

	if c.Output == nil {
		return
	}

	def, err := e.outputs.GetOutput(ctx, c.Output.PointID)
	if err != nil {
		e.markError(ctx, c.ID, "output definition unavailable on recovery: "+err.Error())
		return
	}
	caps, err := def.Capabilities()
	if err != nil {
		e.markError(ctx, c.ID, "output has unknown assigned type: "+err.Error())
		return
	}

	if !caps.ResumeStateOnReboot {
		e.recoverOutputOff(c)
		return
	}

	step, _ := c.StepByNumber(c.CurrentStep)
	inst, err := e.schedules.GetInstance(ctx, step.ScheduleInstanceID)
	if err != nil {
		e.markError(ctx, c.ID, "schedule instance unavailable on recovery: "+err.Error())
		return
	}

	kind := actuator.CommandOff
	if lightsOnAt(minute, inst.LightsOnTime, inst.LightsOffTime) {
		kind = actuator.CommandOn
	}
	e.submit(actuator.Command{PointID: c.Output.PointID, Kind: kind, Source: "recovery"}, c.ID)
}

func (e *Engine) recoverOutputOff(c *ActiveCycle) {
	if c.Output == nil {
		return
	}
	e.submit(actuator.Command{PointID: c.Output.PointID, Kind: actuator.CommandOff, Source: "recovery"}, c.ID)
}

// lightsOnAt computes the expected light state purely from the on/off
// times. An on time later than the off time means an overnight photoperiod.
func lightsOnAt(minute, onTime, offTime int) bool {
	if onTime < 0 || offTime < 0 || onTime == offTime {
		return false
	}
	if onTime < offTime {
		return minute >= onTime && minute < offTime
	}
	return minute >= onTime || minute < offTime
}
