// Package algorithms holds the retry delay calculations used by the pool
// when a worker asks for a task to be attempted again.
package algorithms

import (
	"math/rand"
	"sync"
	"time"
)

// maxShift bounds the exponent so 1<<n never overflows an int64.
const maxShift = 62

// BackoffType selects how retry delays grow.
type BackoffType int

const (
	// BackoffExponential doubles the delay on every retry.
	BackoffExponential BackoffType = iota
	// BackoffJittered doubles the delay and spreads it by a random factor.
	BackoffJittered
)

// Backoff computes the wait before retry number attempt (0 = first retry).
type Backoff interface {
	NextDelay(attempt int) time.Duration
}

// NewBackoff returns the backoff for kind. Unknown kinds fall back to
// exponential.
func NewBackoff(kind BackoffType, initial, ceiling time.Duration, jitter float64) Backoff {
	if ceiling < initial {
		ceiling = initial
	}

	switch kind {
	case BackoffJittered:
		return &jittered{
			exponential: exponential{initial: initial, ceiling: ceiling},
			factor:      clamp(jitter, 0, 1),
			rng:         rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- retry spread only
		}
	default:
		return &exponential{initial: initial, ceiling: ceiling}
	}
}

type exponential struct {
	initial, ceiling time.Duration
}

// NextDelay returns initial * 2^attempt, capped at the ceiling.
func (e *exponential) NextDelay(attempt int) time.Duration {
	if attempt < 0 || e.initial <= 0 {
		return 0
	}
	if attempt >= maxShift {
		return e.ceiling
	}

	d := e.initial * time.Duration(int64(1)<<uint(attempt))
	if d <= 0 || d > e.ceiling {
		return e.ceiling
	}
	return d
}

// jittered multiplies the exponential delay by 1±factor so tasks that failed
// together do not retry together.
type jittered struct {
	exponential
	factor float64

	mu  sync.Mutex
	rng *rand.Rand
}

func (j *jittered) NextDelay(attempt int) time.Duration {
	base := j.exponential.NextDelay(attempt)
	if base == 0 || j.factor == 0 {
		return base
	}

	j.mu.Lock()
	m := 1 + (j.rng.Float64()*2-1)*j.factor
	j.mu.Unlock()

	return clamp(time.Duration(float64(base)*m), 0, j.ceiling)
}

func clamp[N int64 | float64 | time.Duration](v, lo, hi N) N {
	return max(lo, min(v, hi))
}
