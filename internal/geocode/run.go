package geocode

import (
	"context"
	"fmt"
)

// Run carries the mutable state shared by every geocode call in one
// reconciliation run: the lookup budget and the background upgrade queue.
// Runs are independent of each other.
type Run struct {
	budget  *Budget
	upgrade *upgradeQueue
	cancel  context.CancelFunc
}

// StartRun creates a run with its own budget and starts its upgrade worker.
// Finish must be called to stop the worker.
func (r *Resolver) StartRun(ctx context.Context, maxNewLookups int) *Run {
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := &Run{budget: NewBudget(maxNewLookups), cancel: cancel}
	run.upgrade = newUpgradeQueue(r.opts.UpgradeQueueSize, func(ctx context.Context, job upgradeJob) {
		r.runUpgrade(ctx, run, job)
	})
	run.upgrade.start(workerCtx)
	return run
}

// Budget exposes the run's lookup budget.
func (run *Run) Budget() *Budget {
	return run.budget
}

// Finish stops accepting upgrade jobs and waits for queued ones until ctx is
// done. Jobs still pending at that point are abandoned.
func (run *Run) Finish(ctx context.Context) error {
	run.upgrade.close()
	err := run.upgrade.wait(ctx)
	run.cancel()
	if err != nil {
		return fmt.Errorf("drain upgrade queue: %w", err)
	}
	return nil
}
