package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrStalled is returned when no task completes within the stall timeout.
	ErrStalled = errors.New("pool stalled: no task completed within the stall timeout")

	// ErrWorkerInit wraps the error of a WorkerFactory.
	ErrWorkerInit = errors.New("worker initialization failed")

	// ErrWorkerPanic wraps a panic raised inside Worker.Process.
	ErrWorkerPanic = errors.New("worker panic")

	// ErrTaskFailed is recorded when a worker fails a task without a cause.
	ErrTaskFailed = errors.New("task failed")

	// ErrNilFactory is returned when Run is called without a WorkerFactory.
	ErrNilFactory = errors.New("nil worker factory")

	// ErrNilSource is returned when Run is called without a TaskSource.
	ErrNilSource = errors.New("nil task source")
)

// TaskError reports a task whose worker returned a failure.
type TaskError struct {
	Index    int // feed position of the task
	Attempts int
	Err      error
}

func (e *TaskError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("task %d failed after %d attempts: %v", e.Index, e.Attempts, e.Err)
	}
	return fmt.Sprintf("task %d failed: %v", e.Index, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// TaskIndex returns the feed position of the first TaskError in err's chain.
func TaskIndex(err error) (int, bool) {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Index, true
	}
	return 0, false
}

// TaskErrors unpacks every TaskError from an error returned by Run.
func TaskErrors(err error) []*TaskError {
	if err == nil {
		return nil
	}

	var out []*TaskError
	var walk func(error)
	walk = func(e error) {
		if te, ok := e.(*TaskError); ok {
			out = append(out, te)
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			if inner := u.Unwrap(); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}
