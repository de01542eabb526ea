package provisioning

import (
	"fmt"
	"time"
)

// RunPhases executes the phases sequentially. The first failure aborts the
// run; state populated by completed phases stays available to the caller
// for reporting.
func RunPhases(ctx *Context, phases []Phase) error {
	start := time.Now()
	ctx.Observer.Printf("Starting pipeline with %d phases...", len(phases))

	for i, phase := range phases {
		phaseStart := time.Now()
		label := fmt.Sprintf("%s (%d/%d)", phase.Name(), i+1, len(phases))

		LogPhaseStart(ctx.Observer, phase.Name())
		ctx.Observer.Printf("[%s] starting", label)

		if err := phase.Provision(ctx); err != nil {
			LogPhaseFailed(ctx.Observer, phase.Name(), err)
			return fmt.Errorf("%s phase failed: %w", phase.Name(), err)
		}

		LogPhaseComplete(ctx.Observer, phase.Name(), time.Since(phaseStart))
		ctx.Observer.Printf("[%s] completed in %v", label, time.Since(phaseStart).Round(time.Millisecond))
	}

	ctx.Observer.Printf("Pipeline completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}
