package pool

import (
	"context"

	"github.com/google/uuid"
	"github.com/stat-ml/ncvis/internal/logger"
)

// LargePool runs every task of a TaskSource through a fixed set of workers
// while rendering live progress.
//
// A LargePool only holds configuration. Each call to Run or Execute starts its
// own feeder, workers and monitor and stops them before returning, so one
// LargePool can serve many runs, including concurrent ones.
//
// Type parameters:
//   - T: The task type
//   - R: The result type
type LargePool[T any, R any] struct {
	conf *config
}

// New creates a pool with the given options.
//
// Default configuration:
//   - workerCount: runtime.GOMAXPROCS(0)
//   - taskBuffer: equal to workerCount
//   - pollInterval: 200ms
//   - stallTimeout: 0 (wait indefinitely)
//   - progress: bar on stderr, prefixed with "Loading "
//   - maxAttempts: 1 (no retries)
//
// Example:
//
//	p := pool.New[string, Sample](
//	    pool.WithWorkerCount(8),
//	    pool.WithMessage("Loading COIL-20 "),
//	)
func New[T any, R any](opts ...Option) *LargePool[T, R] {
	return &LargePool[T, R]{conf: newConfig(opts...)}
}

// Run processes every task of src and returns the successful values in the
// order workers finished them, not in input order. Skipped tasks are dropped.
//
// The returned error is nil when every task succeeded or was skipped.
// Otherwise it joins a *TaskError per failed task, and the slice still holds
// every value that was produced. ErrStalled, ErrWorkerInit, source errors and
// context errors are joined in the same way.
//
// Example:
//
//	files := source.Slice([]string{"a.txt", "b.txt", "skip.dat"})
//	vals, err := p.Run(ctx, files, pool.Stateless(func(ctx context.Context, name string) pool.Outcome[int] {
//	    if !strings.HasSuffix(name, ".txt") {
//	        return pool.Skip[int]()
//	    }
//	    return pool.Success(len(name))
//	}))
func (p *LargePool[T, R]) Run(ctx context.Context, src TaskSource[T], factory WorkerFactory[T, R]) ([]R, error) {
	report, err := p.Execute(ctx, src, factory)
	if report == nil {
		return nil, err
	}
	return report.Values(), err
}

// Execute is Run with the task index of every result and the run statistics.
// The report is non-nil whenever src and factory are non-nil.
func (p *LargePool[T, R]) Execute(ctx context.Context, src TaskSource[T], factory WorkerFactory[T, R]) (*Report[R], error) {
	if src == nil {
		return nil, ErrNilSource
	}
	if factory == nil {
		return nil, ErrNilFactory
	}

	declared := max(src.Len(), 0)
	runID := uuid.NewString()
	report := &Report[R]{
		Results: make([]Result[R], 0, min(declared, maxOutcomeBuffer)),
		Stats:   Stats{RunID: runID, Declared: declared},
	}

	log := p.conf.logger.With().Str(logger.FieldRunID, runID).Logger()
	if declared == 0 {
		log.Debug().Msg("empty task source, nothing to run")
		return report, nil
	}

	r := &run[T, R]{
		conf:     p.conf,
		src:      src,
		factory:  factory,
		declared: declared,
		workers:  min(p.conf.workerCount, declared),
		log:      log,
		metrics:  p.conf.metrics,
		backoff:  p.conf.newBackoff(),
	}
	return r.execute(ctx, report)
}
