// Package pool runs a lazily produced set of tasks through a fixed number of
// worker goroutines while a monitor renders live progress.
//
// The primary type is LargePool[T, R]. A run wires four parts together:
//
//   - a feeder that ranges over TaskSource.Tasks and pushes onto a bounded
//     input channel, so the source is never materialised in memory
//   - N workers, each owning one Worker built by the WorkerFactory
//   - an output channel sized to TaskSource.Len
//   - a collector on the calling goroutine that drains outcomes and, every
//     poll interval, samples the completed count for the progress reporter
//
// # Basic Usage
//
//	p := pool.New[string, Image](pool.WithWorkerCount(8))
//	images, err := p.Run(ctx, source.Slice(paths), func() (pool.Worker[string, Image], error) {
//	    return newDecoder(), nil
//	})
//
// Results come back in completion order. Use Execute and Report.Sorted when
// the input order matters.
//
// # Outcomes
//
// A Worker returns Success, Skip or Fail. Skips vanish silently. Failures do
// not stop the run: every task is attempted and the returned error joins one
// *TaskError per failed task next to the values that were produced.
// WithFailFast cancels the run on the first failure instead.
//
// # Stalls
//
// WithStallTimeout cancels a run that has gone too long without completing
// any task and returns ErrStalled with the partial results. Without it a run
// waits as long as the caller's context allows.
//
// # Retry Logic
//
//	p := pool.New[string, []byte](
//	    pool.WithRetryPolicy(3, 100*time.Millisecond),
//	    pool.WithBackoff(pool.BackoffJittered, 2*time.Second, 0.2),
//	)
//
// Only failures are retried; a Skip is final.
//
// # Rate Limiting
//
//	p := pool.New[string, Response](
//	    pool.WithWorkerCount(10),
//	    pool.WithRateLimit(5.0, 10), // 5 tasks/sec, burst of 10
//	)
//
// # Progress
//
// By default a progress bar is drawn on stderr. WithLogProgress reports
// through the zerolog logger instead, WithReporter plugs in a custom
// renderer and WithProgress(false) turns it off.
package pool
