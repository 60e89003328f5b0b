package pool

import (
	"context"
	"errors"
	"time"
)

// collector consumes outcomes and doubles as the progress monitor. It runs
// on the goroutine that called Execute, so the reporter is never touched
// concurrently.
type collector[T, R any] struct {
	r        *run[T, R]
	report   *Report[R]
	cancel   context.CancelCauseFunc
	reporter Reporter

	total        int
	lastDone     int64
	lastProgress time.Time

	drained  bool // outcomes was closed: every goroutine has returned
	stalled  bool
	taskErrs []error
}

func newCollector[T, R any](r *run[T, R], report *Report[R], cancel context.CancelCauseFunc) *collector[T, R] {
	return &collector[T, R]{
		r:        r,
		report:   report,
		cancel:   cancel,
		reporter: r.conf.newReporter(r.log),
		total:    r.declared,
	}
}

// loop returns when the outcome channel is closed or the run context is
// done. On cancellation it takes whatever outcomes are already buffered and
// leaves without waiting for workers that ignore ctx.
func (c *collector[T, R]) loop(ctx context.Context, outcomes <-chan taskOutcome[R]) {
	c.reporter.Start(c.total)
	c.lastProgress = time.Now()

	ticker := time.NewTicker(c.r.conf.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case o, ok := <-outcomes:
			if !ok {
				c.drained = true
				return
			}
			c.record(ctx, o)

		case now := <-ticker.C:
			c.tick(now)

		case <-ctx.Done():
			c.drain(ctx, outcomes)
			return
		}
	}
}

func (c *collector[T, R]) record(ctx context.Context, o taskOutcome[R]) {
	stats := &c.report.Stats

	switch o.outcome.Kind() {
	case KindSuccess:
		stats.Succeeded++
		c.report.Results = append(c.report.Results, Result[R]{Value: o.outcome.Value(), Index: o.index})

	case KindSkip:
		stats.Skipped++

	case KindFailure:
		stats.Failed++
		err := o.outcome.Err()
		if ctx.Err() != nil && isContextErr(err) {
			// casualty of the cancellation, already reported through its cause
			return
		}

		te := &TaskError{Index: o.index, Attempts: o.attempts, Err: err}
		c.taskErrs = append(c.taskErrs, te)
		if c.r.conf.failFast && ctx.Err() == nil {
			c.r.log.Debug().Int("task", o.index).Msg("fail-fast: cancelling run")
			c.cancel(te)
		}
	}
}

// tick samples the counters: progress, total growth and stall detection.
func (c *collector[T, R]) tick(now time.Time) {
	c.sample()

	done := c.r.completed.Load()
	if done != c.lastDone {
		c.lastDone = done
		c.lastProgress = now
		return
	}

	timeout := c.r.conf.stallTimeout
	if timeout > 0 && now.Sub(c.lastProgress) >= timeout {
		c.stalled = true
		c.r.log.Warn().
			Int64("completed", done).
			Int("total", c.total).
			Dur("stall_timeout", timeout).
			Msg("no task completed within the stall timeout, cancelling run")
		c.cancel(ErrStalled)
	}
}

func (c *collector[T, R]) sample() {
	if fed := int(c.r.fed.Load()); fed > c.total {
		c.total = fed
		c.reporter.Grow(fed)
	}
	c.reporter.Update(int(c.r.completed.Load()))
}

// drain records outcomes that were buffered before the cancellation.
func (c *collector[T, R]) drain(ctx context.Context, outcomes <-chan taskOutcome[R]) {
	for {
		select {
		case o, ok := <-outcomes:
			if !ok {
				c.drained = true
				return
			}
			c.record(ctx, o)
		default:
			return
		}
	}
}

// finish closes the reporter once the run error is known. A drained run
// finishes the bar when it succeeded or reached the total, even if the source
// yielded fewer tasks than it declared.
func (c *collector[T, R]) finish(runErr error) {
	c.sample()
	if c.drained && (runErr == nil || c.report.Stats.Completed() >= c.total) {
		c.reporter.Finish()
		return
	}
	c.reporter.Abort()
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
