package provisioning

import (
	"fmt"
	"time"
)

// RunPhases executes phases sequentially. The budget is checked before each
// phase and the record is checkpointed after each successful one.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()

	for i, phase := range phases {
		phaseStart := time.Now()
		name := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))

		if err := ctx.Budget.Check(phase.Name()); err != nil {
			LogPhaseFailed(ctx.Observer, name, err)
			return err
		}

		ctx.Observer.Progress(phase.Name(), i+1, len(phases))
		LogPhaseStart(ctx.Observer, name)
		if err := phase.Provision(ctx); err != nil {
			LogPhaseFailed(ctx.Observer, name, err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		if err := ctx.Checkpoint(); err != nil {
			LogPhaseFailed(ctx.Observer, name, err)
			return fmt.Errorf("%s phase: %w", phase.Name(), err)
		}
		LogPhaseComplete(ctx.Observer, name, time.Since(phaseStart))
	}

	ctx.Observer.Printf("%d phases completed in %v", len(phases), time.Since(start).Round(time.Millisecond))
	return nil
}
