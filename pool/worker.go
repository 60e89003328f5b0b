package pool

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/stat-ml/ncvis/internal/cpu"
	"github.com/stat-ml/ncvis/internal/logger"
)

// feed drains the task source into the input channel, tagging each task with
// its position, and closes the channel when the source is exhausted.
func (r *run[T, R]) feed(ctx context.Context, tasks chan<- indexedTask[T]) error {
	defer close(tasks)

	index := 0
	for task, err := range r.src.Tasks(ctx) {
		if err != nil {
			return fmt.Errorf("task source: %w", err)
		}

		select {
		case tasks <- indexedTask[T]{task: task, index: index}:
		case <-ctx.Done():
			return ctx.Err()
		}

		index++
		r.fed.Store(int64(index))
		r.metrics.fed()
	}

	r.log.Debug().Int("fed", index).Msg("feeder done")
	return nil
}

// work is the loop of one worker goroutine: build the Worker once, then
// process tasks until the input channel is closed or the run is cancelled.
func (r *run[T, R]) work(ctx context.Context, id int, tasks <-chan indexedTask[T], outcomes chan<- taskOutcome[R]) error {
	log := r.log.With().Int(logger.FieldWorker, id).Logger()

	if r.conf.pinCPU {
		release, err := cpu.Pin(id)
		if err != nil {
			log.Debug().Err(err).Msg("cpu affinity not applied")
		}
		defer release()
	}

	w, err := r.build()
	if err != nil {
		log.Error().Err(err).Msg("worker initialization failed")
		return fmt.Errorf("%w: worker %d: %w", ErrWorkerInit, id, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case t, ok := <-tasks:
			if !ok {
				return nil
			}

			r.metrics.busy(1)
			res := r.process(ctx, w, t)
			r.metrics.busy(-1)
			if ctx.Err() != nil && res.outcome.Kind() == KindFailure && isContextErr(res.outcome.Err()) {
				return ctx.Err()
			}
			r.completed.Add(1)

			if res.outcome.Kind() == KindFailure {
				log.Debug().
					Int(logger.FieldTask, t.index).
					Int("attempts", res.attempts).
					Err(res.outcome.Err()).
					Msg("task failed")
			}

			select {
			case outcomes <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// build runs the factory, turning a panic into an error.
func (r *run[T, R]) build() (w Worker[T, R], err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("factory panic: %v", p)
		}
	}()

	w, err = r.factory()
	if err == nil && w == nil {
		err = fmt.Errorf("factory returned a nil worker")
	}
	return w, err
}

// process runs one task through the rate limiter and the retry loop.
// Only failures are retried; a skip or success ends the loop.
func (r *run[T, R]) process(ctx context.Context, w Worker[T, R], t indexedTask[T]) taskOutcome[R] {
	start := time.Now()
	maxAttempts := max(r.conf.maxAttempts, 1)

	var out Outcome[R]
	attempts := 0
	for attempt := range maxAttempts {
		if attempt > 0 {
			if err := sleepCtx(ctx, r.backoff.NextDelay(attempt-1)); err != nil {
				out = Fail[R](err)
				break
			}
		}

		if r.conf.rateLimiter != nil {
			if err := r.conf.rateLimiter.Wait(ctx); err != nil {
				// the limiter's error does not wrap the context error
				if ctxErr := ctx.Err(); ctxErr != nil {
					err = ctxErr
				}
				out = Fail[R](err)
				break
			}
		}

		attempts++
		out = processWithRecovery(ctx, w, t.task)
		if out.Kind() != KindFailure {
			break
		}
	}

	r.metrics.observe(out.Kind(), time.Since(start))
	return taskOutcome[R]{outcome: out, index: t.index, attempts: attempts}
}

// processWithRecovery calls w.Process and converts a panic into a failure
// carrying the stack trace.
func processWithRecovery[T, R any](ctx context.Context, w Worker[T, R], task T) (out Outcome[R]) {
	defer func() {
		if p := recover(); p != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			out = Fail[R](fmt.Errorf("%w: %v\nstack trace:\n%s", ErrWorkerPanic, p, buf[:n]))
		}
	}()

	return w.Process(ctx, task)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
