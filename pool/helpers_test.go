package pool

import (
	"context"
	"iter"
	"sync"
	"time"
)

// sliceSource yields the elements of a slice and declares its length.
type sliceSource[T any] []T

func (s sliceSource[T]) Len() int { return len(s) }

func (s sliceSource[T]) Tasks(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, t := range s {
			if !yield(t, nil) {
				return
			}
		}
	}
}

// lyingSource declares one count and yields another.
type lyingSource struct {
	declared int
	actual   int
	err      error // yielded after the actual tasks when set
}

func (s lyingSource) Len() int { return s.declared }

func (s lyingSource) Tasks(ctx context.Context) iter.Seq2[int, error] {
	return func(yield func(int, error) bool) {
		for i := range s.actual {
			if !yield(i, nil) {
				return
			}
		}
		if s.err != nil {
			yield(0, s.err)
		}
	}
}

func ints(n int) sliceSource[int] {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// recordingReporter keeps every sample it receives.
type recordingReporter struct {
	mu       sync.Mutex
	started  int
	updates  []int
	grown    []int
	finished int
	aborted  int
}

func (r *recordingReporter) Start(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = total
}

func (r *recordingReporter) Update(current int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, current)
}

func (r *recordingReporter) Grow(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grown = append(r.grown, total)
}

func (r *recordingReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished++
}

func (r *recordingReporter) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aborted++
}

func (r *recordingReporter) last() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.updates) == 0 {
		return -1
	}
	return r.updates[len(r.updates)-1]
}

func quiet(opts ...Option) []Option {
	return append([]Option{WithProgress(false), WithPollInterval(5 * time.Millisecond)}, opts...)
}
