package pool

import (
	"context"
	"iter"
	"slices"
	"time"
)

// TaskSource is a finite, lazily produced sequence of tasks.
//
// Len is the declared count: it sizes the output channel and is the total the
// progress monitor counts towards. It must match the number of tasks Tasks
// yields; the pool survives a mismatch but logs it.
//
// Tasks yields (task, nil) for every task. A non-nil error ends the feed and
// fails the run.
type TaskSource[T any] interface {
	Len() int
	Tasks(ctx context.Context) iter.Seq2[T, error]
}

// Worker turns one task into an Outcome. A pool builds one Worker per worker
// goroutine and reuses it for every task that goroutine receives, so a
// Worker may keep state but must not share it with other Workers.
type Worker[T any, R any] interface {
	Process(ctx context.Context, task T) Outcome[R]
}

// WorkerFactory builds a Worker from fixed construction arguments captured by
// the closure. It runs exactly once per worker goroutine.
type WorkerFactory[T any, R any] func() (Worker[T, R], error)

// WorkerFunc adapts a plain function to the Worker interface.
type WorkerFunc[T any, R any] func(ctx context.Context, task T) Outcome[R]

// Process calls f(ctx, task).
func (f WorkerFunc[T, R]) Process(ctx context.Context, task T) Outcome[R] {
	return f(ctx, task)
}

// Stateless returns a factory handing out fn to every worker goroutine.
func Stateless[T any, R any](fn func(ctx context.Context, task T) Outcome[R]) WorkerFactory[T, R] {
	return func() (Worker[T, R], error) {
		return WorkerFunc[T, R](fn), nil
	}
}

// OutcomeKind tags what a Worker did with a task.
type OutcomeKind uint8

const (
	// KindSuccess carries a value for the caller.
	KindSuccess OutcomeKind = iota
	// KindSkip drops the task silently. It is not an error.
	KindSkip
	// KindFailure carries the error that stopped the task.
	KindFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindSkip:
		return "skip"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Outcome is the tagged return value of Worker.Process.
type Outcome[R any] struct {
	value R
	err   error
	kind  OutcomeKind
}

// Success wraps a value that should reach the caller.
func Success[R any](v R) Outcome[R] {
	return Outcome[R]{value: v, kind: KindSuccess}
}

// Skip drops the task from the results.
func Skip[R any]() Outcome[R] {
	return Outcome[R]{kind: KindSkip}
}

// Fail reports that the task could not be processed. A nil err is recorded
// as ErrTaskFailed.
func Fail[R any](err error) Outcome[R] {
	if err == nil {
		err = ErrTaskFailed
	}
	return Outcome[R]{err: err, kind: KindFailure}
}

// FromResult maps the (value, error) pair of an ordinary function call to an
// Outcome.
func FromResult[R any](v R, err error) Outcome[R] {
	if err != nil {
		return Fail[R](err)
	}
	return Success(v)
}

func (o Outcome[R]) Kind() OutcomeKind { return o.kind }
func (o Outcome[R]) Value() R          { return o.value }
func (o Outcome[R]) Err() error        { return o.err }

// Result is a successful value together with the feed position of the task
// that produced it. Index lets callers restore input order.
type Result[R any] struct {
	Value R
	Index int
}

// Stats summarises one run.
type Stats struct {
	RunID     string
	Declared  int // Len() of the source
	Fed       int // tasks actually produced by the source
	Succeeded int
	Skipped   int
	Failed    int
	Workers   int
	Elapsed   time.Duration
}

// Completed returns how many tasks reached a terminal outcome.
func (s Stats) Completed() int {
	return s.Succeeded + s.Skipped + s.Failed
}

// Report is the detailed output of LargePool.Execute.
type Report[R any] struct {
	// Results holds successful values in the order workers finished them.
	Results []Result[R]
	Stats   Stats
}

// Values returns the result values in drain order.
func (r *Report[R]) Values() []R {
	out := make([]R, len(r.Results))
	for i, res := range r.Results {
		out[i] = res.Value
	}
	return out
}

// Sorted returns the results ordered by task index.
func (r *Report[R]) Sorted() []Result[R] {
	out := slices.Clone(r.Results)
	slices.SortFunc(out, func(a, b Result[R]) int {
		return a.Index - b.Index
	})
	return out
}

// indexedTask carries a task with its feed position.
type indexedTask[T any] struct {
	task  T
	index int
}

// taskOutcome is what a worker pushes onto the output channel.
type taskOutcome[R any] struct {
	outcome  Outcome[R]
	index    int
	attempts int
}
