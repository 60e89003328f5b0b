package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/stat-ml/ncvis/internal/algorithms"
	"golang.org/x/sync/errgroup"
)

// maxOutcomeBuffer caps the outcome channel and the initial result capacity.
const maxOutcomeBuffer = 1 << 16

// run is the state of one LargePool.Execute call.
//
// Data flow: source -> feeder -> tasks -> workers -> outcomes -> collector.
// The monitor shares the collector goroutine and only reads the atomic
// counters.
type run[T, R any] struct {
	conf     *config
	src      TaskSource[T]
	factory  WorkerFactory[T, R]
	declared int
	workers  int
	log      zerolog.Logger
	metrics  *Metrics
	backoff  algorithms.Backoff

	fed       atomic.Int64 // tasks pushed by the feeder
	completed atomic.Int64 // tasks with a terminal outcome
}

// execute starts the feeder and workers, then collects on the calling
// goroutine until every outcome is in or the run is cut short.
func (r *run[T, R]) execute(parent context.Context, report *Report[R]) (*Report[R], error) {
	start := time.Now()
	r.log.Debug().
		Int("declared", r.declared).
		Int("workers", r.workers).
		Msg("run started")

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)

	g, gctx := errgroup.WithContext(ctx)
	tasks := make(chan indexedTask[T], r.conf.taskBuffer)
	outcomes := make(chan taskOutcome[R], min(r.declared, maxOutcomeBuffer))

	g.Go(func() error {
		return r.feed(gctx, tasks)
	})
	for id := range r.workers {
		g.Go(func() error {
			return r.work(gctx, id, tasks, outcomes)
		})
	}

	groupDone := make(chan error, 1)
	go func() {
		err := g.Wait()
		close(outcomes)
		groupDone <- err
	}()

	c := newCollector(r, report, cancel)
	c.loop(ctx, outcomes)

	var groupErr error
	if c.drained {
		groupErr = <-groupDone
	}

	report.Stats.Fed = int(r.fed.Load())
	report.Stats.Workers = r.workers
	report.Stats.Elapsed = time.Since(start)

	err := r.finalError(parent, c, groupErr)
	c.finish(err)
	r.logSummary(report.Stats, err)
	return report, err
}

// finalError orders the causes of a run ending: a stall first, then the
// caller's context, then feeder or worker-init failures, then task failures.
func (r *run[T, R]) finalError(parent context.Context, c *collector[T, R], groupErr error) error {
	var errs []error
	switch {
	case c.stalled:
		errs = append(errs, ErrStalled)
	case parent.Err() != nil:
		errs = append(errs, parent.Err())
	case groupErr != nil && !errors.Is(groupErr, context.Canceled):
		errs = append(errs, groupErr)
	}
	errs = append(errs, c.taskErrs...)
	return errors.Join(errs...)
}

func (r *run[T, R]) logSummary(s Stats, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.metrics.finished(status)

	if s.Fed != s.Declared && err == nil {
		r.log.Warn().
			Int("declared", s.Declared).
			Int("fed", s.Fed).
			Msg("task source produced a different number of tasks than it declared")
	}

	ev := r.log.Debug()
	if err != nil {
		ev = r.log.Warn().Err(err)
	}
	ev.Int("succeeded", s.Succeeded).
		Int("skipped", s.Skipped).
		Int("failed", s.Failed).
		Dur("elapsed", s.Elapsed).
		Msg("run finished")
}
